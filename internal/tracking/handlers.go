package tracking

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
)

type locationRequest struct {
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	SpeedMps float64  `json:"speed_mps"`
}

type activityRequest struct {
	Type       string `json:"type"`
	Confidence int    `json:"confidence"`
}

type permissionRequest struct {
	Granted *bool `json:"granted"`
}

func RegisterRoutes(r fiber.Router, tracker *Tracker, live *LiveRepository, source *DeviceSource, authMiddleware fiber.Handler) {
	commands := []struct {
		path string
		run  func(context.Context) error
	}{
		{"/start", tracker.Start},
		{"/pause", tracker.Pause},
		{"/resume", tracker.Resume},
		{"/stop", tracker.Stop},
		{"/detach", tracker.Detach},
	}
	for _, cmd := range commands {
		run := cmd.run
		r.Post(cmd.path, authMiddleware, func(c *fiber.Ctx) error {
			if err := run(c.Context()); err != nil {
				return trackerError(err)
			}
			return c.JSON(live.View())
		})
	}

	r.Post("/location", authMiddleware, func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		var sample *Sample
		if req.Lat != nil && req.Lng != nil {
			if *req.Lat < -90 || *req.Lat > 90 || *req.Lng < -180 || *req.Lng > 180 {
				return fiber.NewError(fiber.StatusBadRequest, "lat or lng out of range")
			}
			if req.SpeedMps < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "speed_mps must not be negative")
			}
			sample = &Sample{Lat: *req.Lat, Lng: *req.Lng, SpeedMps: req.SpeedMps}
		}
		if err := tracker.OnLocation(c.Context(), sample); err != nil {
			return trackerError(err)
		}
		return c.JSON(live.View())
	})

	r.Post("/activity", authMiddleware, func(c *fiber.Ctx) error {
		var req activityRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Type == "" || req.Confidence < 0 || req.Confidence > 100 {
			return fiber.NewError(fiber.StatusBadRequest, "type and confidence (0-100) required")
		}
		activity := Activity{Type: ParseActivityType(req.Type), Confidence: req.Confidence}
		if err := tracker.OnActivity(c.Context(), activity); err != nil {
			return trackerError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/permissions", authMiddleware, func(c *fiber.Ctx) error {
		var req permissionRequest
		if err := c.BodyParser(&req); err != nil || req.Granted == nil {
			return fiber.NewError(fiber.StatusBadRequest, "granted required")
		}
		if err := tracker.SetPermission(c.Context(), *req.Granted); err != nil {
			return trackerError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/live", func(c *fiber.Ctx) error {
		return c.JSON(live.View())
	})

	r.Get("/subscription", func(c *fiber.Ctx) error {
		sub, ok := source.Current()
		if !ok {
			return c.JSON(fiber.Map{"active": false})
		}
		return c.JSON(fiber.Map{"active": true, "subscription": sub})
	})
}

func trackerError(err error) error {
	if errors.Is(err, ErrTrackerClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
