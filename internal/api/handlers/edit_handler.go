package handlers

import (
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/kikiluvv/spotlight/internal/pipeline"
)

func (h *Handler) RegisterEditRoutes(app *fiber.App) {
	app.Post("/api/generate_video", h.generateVideo)
}

func (h *Handler) generateVideo(c *fiber.Ctx) error {
	var payload pipeline.EditRequest

	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "invalid body",
			"status": fiber.StatusBadRequest,
		})
	}
	if len(payload.Timestamps) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "timestamps are required",
			"status": fiber.StatusBadRequest,
		})
	}

	plan, err := h.pipe.Plan(payload.Segments())
	if err != nil {
		return errJson(c, err)
	}

	output, err := h.pipe.OutputFor(payload.OutputFileName)
	if err != nil {
		return errJson(c, err)
	}

	h.logger.Info().
		Int("segments", len(plan.Segments)).
		Str("output", output).
		Msg("edit request")

	f, err := h.pipe.RenderFile(c.UserContext(), plan, pipeline.RenderOptions{OutputPath: output})
	if err != nil {
		h.logger.Warn().Err(err).Str("output", output).Msg("edit request failed")
		return errJson(c, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return errJson(c, err)
	}

	c.Attachment(filepath.Base(output))
	c.Set(fiber.HeaderContentType, "video/mp4")
	// the stream closes f once the body is written
	return c.SendStream(f, int(st.Size()))
}
