package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/kikiluvv/spotlight/internal/api/handlers"
	"github.com/kikiluvv/spotlight/internal/pipeline"
	"github.com/rs/zerolog"
)

// NewServer builds the HTTP app around a loaded pipeline
func NewServer(logger zerolog.Logger, p *pipeline.Pipeline) *fiber.App {
	logger = logger.With().Str("component", "api").Logger()

	app := fiber.New(fiber.Config{
		AppName:               "spotlight",
		DisableStartupMessage: true,
		ErrorHandler:          handlers.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(requestLogger(logger))

	h := handlers.New(logger, p)
	handlers.RegisterHealthRoutes(app, p)
	h.RegisterAnnotationRoutes(app)
	h.RegisterEditRoutes(app)

	return app
}

func requestLogger(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		logger.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("request")

		return err
	}
}
