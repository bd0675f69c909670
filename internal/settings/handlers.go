package settings

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type updateRequest struct {
	LocationInterval   *int  `json:"location_interval"`
	BackgroundTracking *bool `json:"background_tracking"`
}

func RegisterRoutes(r fiber.Router, store *Store, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		current, err := store.Get(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(current)
	})

	r.Put("/", authMiddleware, func(c *fiber.Ctx) error {
		var req updateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.LocationInterval == nil && req.BackgroundTracking == nil {
			return fiber.NewError(fiber.StatusBadRequest, "location_interval or background_tracking required")
		}
		if req.LocationInterval != nil {
			if err := store.SetLocationInterval(c.Context(), *req.LocationInterval); err != nil {
				if errors.Is(err, ErrInvalidInterval) {
					return fiber.NewError(fiber.StatusBadRequest, err.Error())
				}
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
		}
		if req.BackgroundTracking != nil {
			if err := store.SetBackgroundTracking(c.Context(), *req.BackgroundTracking); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
		}

		current, err := store.Get(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(current)
	})
}
