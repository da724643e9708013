package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kikiluvv/spotlight/internal/pipeline"
	"github.com/kikiluvv/spotlight/pkg/util"
	"github.com/rs/zerolog"
)

// Handler serves requests against one pipeline
type Handler struct {
	logger zerolog.Logger
	pipe   *pipeline.Pipeline
}

func New(logger zerolog.Logger, p *pipeline.Pipeline) *Handler {
	return &Handler{logger: logger, pipe: p}
}

func RegisterHealthRoutes(app *fiber.App, p *pipeline.Pipeline) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"ffmpeg": p.FFmpegAvailable(),
			"source": util.FileExists(p.Config().Edit.SourceVideo),
		})
	})
}
