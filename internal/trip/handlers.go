package trip

import (
	"bytes"
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/", func(c *fiber.Ctx) error {
		items, err := svc.History(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(items)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		trip, err := svc.GetTrip(c.Context(), c.Params("id"))
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(trip)
	})

	r.Get("/:id/waypoints", func(c *fiber.Ctx) error {
		waypoints, err := svc.Waypoints(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(waypoints)
	})

	r.Get("/:id/stats", func(c *fiber.Ctx) error {
		stats, err := svc.Stats(c.Context(), c.Params("id"))
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(stats)
	})

	r.Get("/:id/export", func(c *fiber.Ctx) error {
		id := c.Params("id")
		switch c.Query("format", "gpx") {
		case "gpx":
			var buf bytes.Buffer
			if err := svc.ExportGPX(c.Context(), id, &buf); err != nil {
				return lookupError(err)
			}
			c.Set(fiber.HeaderContentType, "application/gpx+xml")
			c.Set(fiber.HeaderContentDisposition, `attachment; filename="trip-`+id+`.gpx"`)
			return c.Send(buf.Bytes())
		case "geojson":
			body, err := svc.ExportGeoJSON(c.Context(), id)
			if err != nil {
				return lookupError(err)
			}
			c.Set(fiber.HeaderContentType, "application/geo+json")
			return c.Send(body)
		default:
			return fiber.NewError(fiber.StatusBadRequest, "format must be gpx or geojson")
		}
	})
}

func lookupError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "trip not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
