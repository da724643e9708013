package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/kikiluvv/spotlight/internal/overlays"
	"github.com/kikiluvv/spotlight/pkg/util"
)

// StillOptions defines single-frame extraction parameters
type StillOptions struct {
	At     time.Duration
	Crop   overlays.PixelBox
	WorkW  int
	WorkH  int
	Output string
}

// ExtractStill seeks to At and writes one frame cropped to Crop
func (e *Executor) ExtractStill(ctx context.Context, input string, opts StillOptions) error {
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if opts.At < 0 {
		return fmt.Errorf("invalid still time: %v", opts.At)
	}

	workW, workH := opts.WorkW, opts.WorkH
	if workW <= 0 || workH <= 0 {
		workW, workH = DefaultWorkWidth, DefaultWorkHeight
	}
	x, y, w, h := opts.Crop.Rect(workW, workH)
	if w <= 0 || h <= 0 {
		return fmt.Errorf("empty crop %dx%d", w, h)
	}

	if _, err := PrepareOutput(opts.Output); err != nil {
		return err
	}

	e.logger.Info().
		Str("input", input).
		Str("output", opts.Output).
		Dur("at", opts.At).
		Msg("extracting still")

	args := []string{
		"-ss", seekTimestamp(opts.At),
		"-i", input,
		"-vf", NewFilterBuilder().Crop(w, h, x, y).Build(),
		"-frames:v", "1",
		opts.Output,
	}

	runOpts := RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("still extraction")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		util.CleanupFiles(opts.Output)
		return fmt.Errorf("still extraction failed: %w", err)
	}

	return nil
}

// seekTimestamp formats d as HH:MM:SS.mmm for -ss
func seekTimestamp(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
