package handlers

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/kikiluvv/spotlight/internal/timeline"
)

func (h *Handler) RegisterAnnotationRoutes(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/match", h.match)
	api.Get("/appearances", h.appearances)
	api.Get("/overlay", h.overlay)
}

func (h *Handler) match(c *fiber.Ctx) error {
	res, err := h.pipe.Match()
	if err != nil {
		return errJson(c, err)
	}

	return c.JSON(fiber.Map{
		"timestampSec": res.Seconds(),
		"hasBox":       res.HasBox,
		"box":          res.Box,
		"source":       res.Source,
	})
}

func (h *Handler) appearances(c *fiber.Ctx) error {
	subject := c.Query("subject")
	if subject == "" {
		subject = h.pipe.Config().Annotations.Subject
	}

	intervals, err := h.pipe.Intervals(subject)
	if err != nil {
		return errJson(c, err)
	}
	if c.QueryBool("compress") {
		intervals = timeline.Compress(intervals)
	}

	return c.JSON(fiber.Map{
		"subject":   subject,
		"intervals": intervals,
	})
}

func (h *Handler) overlay(c *fiber.Ctx) error {
	t, err := queryFloat(c, "t")
	if err != nil {
		return errJson(c, err)
	}
	frameW, err := queryFloat(c, "frameW")
	if err != nil {
		return errJson(c, err)
	}
	frameH, err := queryFloat(c, "frameH")
	if err != nil {
		return errJson(c, err)
	}

	session, err := h.pipe.OverlaySession(c.Query("subject"), frameW, frameH, c.Query("mode"))
	if err != nil {
		return errJson(c, fiber.NewError(fiber.StatusBadRequest, err.Error()))
	}

	g, ok := session.Sample(t)
	if !ok {
		return c.JSON(fiber.Map{"visible": false})
	}

	return c.JSON(fiber.Map{
		"visible":  true,
		"geometry": g,
	})
}

func queryFloat(c *fiber.Ctx, key string) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s is required", key))
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid %s: %q", key, raw))
	}
	return v, nil
}
