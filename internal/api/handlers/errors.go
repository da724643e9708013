package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kikiluvv/spotlight/internal/annotations"
	"github.com/kikiluvv/spotlight/internal/clips"
	"github.com/kikiluvv/spotlight/internal/ffmpeg"
	"github.com/kikiluvv/spotlight/internal/matcher"
	"github.com/kikiluvv/spotlight/internal/pipeline"
	"github.com/rs/zerolog"
)

// StatusFor maps domain errors to HTTP status codes
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, pipeline.ErrOutputBusy):
		return fiber.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, ffmpeg.ErrEmptyPlan),
		errors.Is(err, pipeline.ErrUnsafeOutput),
		errors.Is(err, clips.ErrInvalidSegment),
		errors.Is(err, annotations.ErrMalformedAnnotationData):
		return fiber.StatusBadRequest
	case errors.Is(err, matcher.ErrNoMatchFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func errJson(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	body := fiber.Map{
		"error":  err.Error(),
		"status": status,
	}

	var execErr *ffmpeg.ExecutionError
	if errors.As(err, &execErr) && execErr.Output != "" {
		body["detail"] = execErr.Output
	}

	return c.Status(status).JSON(body)
}

// ErrorHandler renders errors that escape handlers in the same shape
func ErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if StatusFor(err) >= fiber.StatusInternalServerError {
			logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		}
		return errJson(c, err)
	}
}
