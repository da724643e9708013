package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kikiluvv/spotlight/pkg/util"
)

// RenderOptions configures RenderPlan
type RenderOptions struct {
	Encode       EncodeOptions
	ProgressFunc ProgressFunc
}

// PrepareOutput makes sure output can be written fresh: the parent directory
// exists and any previous artifact is gone. removed reports whether an old
// file was deleted.
func PrepareOutput(output string) (removed bool, err error) {
	if output == "" {
		return false, fmt.Errorf("output path is required")
	}
	if err := util.EnsureDir(filepath.Dir(output)); err != nil {
		return false, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.Remove(output); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove previous output: %w", err)
	}
	return true, nil
}

// RenderPlan runs a synthesized pipeline against input and writes output.
// A failed run leaves no partial file behind.
func (e *Executor) RenderPlan(ctx context.Context, input, output string, desc *PipelineDescription, opts RenderOptions) error {
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if desc == nil || len(desc.Labels) == 0 {
		return ErrEmptyPlan
	}

	removed, err := PrepareOutput(output)
	if err != nil {
		return err
	}
	if removed {
		e.logger.Debug().Str("output", output).Msg("replaced previous output")
	}

	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Int("segments", len(desc.Labels)).
		Int("out_w", desc.OutW).
		Int("out_h", desc.OutH).
		Msg("rendering edit plan")

	runOpts := RunOptions{
		Args:            desc.Args(input, output, opts.Encode),
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("render output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		util.CleanupFiles(output)
		return fmt.Errorf("render failed: %w", err)
	}

	e.logger.Info().Str("output", output).Msg("render completed")
	return nil
}
