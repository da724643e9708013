package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kikiluvv/spotlight/internal/annotations"
	"github.com/kikiluvv/spotlight/internal/clips"
	"github.com/kikiluvv/spotlight/internal/config"
	"github.com/kikiluvv/spotlight/internal/ffmpeg"
	"github.com/kikiluvv/spotlight/internal/matcher"
	"github.com/kikiluvv/spotlight/internal/overlays"
	"github.com/kikiluvv/spotlight/internal/timeline"
	"github.com/kikiluvv/spotlight/pkg/util"
	"github.com/rs/zerolog"
)

// Pipeline ties the annotation store to matching, overlays and rendering
type Pipeline struct {
	logger   zerolog.Logger
	cfg      *config.Config
	store    *annotations.Store
	matcher  *matcher.Matcher
	ffmpeg   *ffmpeg.Executor
	registry *overlays.Registry
	locks    *outputLocks
}

// New creates a pipeline over an already loaded store
func New(logger zerolog.Logger, cfg *config.Config, store *annotations.Store) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if store == nil {
		return nil, fmt.Errorf("annotation store cannot be nil")
	}

	m := matcher.New(logger, matcher.Config{
		Required:          cfg.Annotations.RequiredLabels,
		PreferredIdentity: cfg.Annotations.PreferredIdentity,
		AnchorLabel:       cfg.Annotations.AnchorLabel,
	})

	exec := ffmpeg.New(logger, ffmpeg.Options{
		FFmpegPath:  cfg.FFmpeg.BinaryPath,
		FFprobePath: cfg.FFmpeg.ProbePath,
		Threads:     cfg.FFmpeg.Threads,
	})

	return &Pipeline{
		logger:   logger.With().Str("component", "pipeline").Logger(),
		cfg:      cfg,
		store:    store,
		matcher:  m,
		ffmpeg:   exec,
		registry: overlays.NewRegistry(),
		locks:    newOutputLocks(),
	}, nil
}

// Open loads the configured annotation file and creates a pipeline over it
func Open(logger zerolog.Logger, cfg *config.Config) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	store, err := annotations.LoadFile(cfg.Annotations.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load annotations: %w", err)
	}

	logger.Info().
		Str("path", cfg.Annotations.Path).
		Int("labels", len(store.Labels())).
		Int("subjects", len(store.Subjects())).
		Msg("annotations loaded")

	return New(logger, cfg, store)
}

// Store returns the annotation store
func (p *Pipeline) Store() *annotations.Store {
	return p.store
}

// Config returns the configuration the pipeline was built with
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// RequiredLabels returns the label set the matcher looks for
func (p *Pipeline) RequiredLabels() []string {
	return p.matcher.Required().Names()
}

// Match runs the temporal matcher over the store
func (p *Pipeline) Match() (matcher.Result, error) {
	res, ok := p.matcher.MatchStore(p.store)
	if !ok {
		return matcher.Result{}, matcher.ErrNoMatchFound
	}
	return res, nil
}

// Intervals builds appearance intervals for subject using the configured
// interval mode. An empty subject means the configured one.
func (p *Pipeline) Intervals(subject string) ([]timeline.AppearanceInterval, error) {
	if subject == "" {
		subject = p.cfg.Annotations.Subject
	}

	mode := timeline.Mode(p.cfg.Annotations.IntervalMode)
	switch mode {
	case "":
		mode = timeline.ModeSubject
	case timeline.ModeSubject, timeline.ModeRaw:
	default:
		return nil, fmt.Errorf("unknown interval mode %q", mode)
	}

	intervals := timeline.BuildWithMode(p.store.Subjects(), subject, mode)

	p.logger.Debug().
		Str("subject", subject).
		Str("mode", string(mode)).
		Int("intervals", len(intervals)).
		Msg("intervals built")

	return intervals, nil
}

// WindowSize resolves the configured fixed window, explicit size first
func (p *Pipeline) WindowSize() (overlays.Size, error) {
	if p.cfg.Overlay.WindowW > 0 && p.cfg.Overlay.WindowH > 0 {
		return overlays.Size{W: p.cfg.Overlay.WindowW, H: p.cfg.Overlay.WindowH}, nil
	}
	name := p.cfg.Overlay.Window
	if name == "" {
		name = overlays.Square700
	}
	size, ok := p.registry.Get(name)
	if !ok {
		return overlays.Size{}, fmt.Errorf("unknown window preset %q (have %v)", name, p.registry.List())
	}
	return size, nil
}

// OverlaySession opens a playback session for subject. An empty mode
// falls back to the configured one.
func (p *Pipeline) OverlaySession(subject string, frameW, frameH float64, mode string) (*overlays.Session, error) {
	if frameW <= 0 || frameH <= 0 {
		return nil, fmt.Errorf("invalid frame size %vx%v", frameW, frameH)
	}
	if mode == "" {
		mode = p.cfg.Overlay.Mode
	}
	m, err := overlays.ParseMode(mode)
	if err != nil {
		return nil, err
	}

	opts := overlays.SessionOptions{
		FrameW:    frameW,
		FrameH:    frameH,
		Tolerance: p.cfg.Overlay.Tolerance,
		Mode:      m,
	}
	if m == overlays.ModeWindow {
		if opts.Window, err = p.WindowSize(); err != nil {
			return nil, err
		}
	}

	intervals, err := p.Intervals(subject)
	if err != nil {
		return nil, err
	}

	session := overlays.NewSession(p.logger, opts)
	session.Load(intervals)
	return session, nil
}

// Plan turns segments into an edit plan at the configured resolutions
func (p *Pipeline) Plan(segments []clips.Segment) (clips.EditPlan, error) {
	if p.cfg.Edit.DropEmptySegments {
		kept := clips.DropEmpty(segments)
		if dropped := len(segments) - len(kept); dropped > 0 {
			p.logger.Debug().Int("dropped", dropped).Msg("dropped zero-length segments")
		}
		segments = kept
	}

	plan := clips.EditPlan{
		Segments: segments,
		WorkW:    p.cfg.Edit.WorkWidth,
		WorkH:    p.cfg.Edit.WorkHeight,
		OutW:     p.cfg.Edit.OutWidth,
		OutH:     p.cfg.Edit.OutHeight,
	}
	if plan.Empty() {
		return plan, ffmpeg.ErrEmptyPlan
	}
	return plan, nil
}

// PlanSubject builds an edit plan from the subject's appearance intervals
func (p *Pipeline) PlanSubject(subject string) (clips.EditPlan, error) {
	intervals, err := p.Intervals(subject)
	if err != nil {
		return clips.EditPlan{}, err
	}
	return p.Plan(clips.FromIntervals(intervals))
}

// Describe synthesizes the filter graph for plan without running it
func (p *Pipeline) Describe(plan clips.EditPlan) (*ffmpeg.PipelineDescription, error) {
	return ffmpeg.Synthesize(plan)
}

// OutputFor resolves a client supplied file name inside the output
// directory. An empty name selects the configured default.
func (p *Pipeline) OutputFor(name string) (string, error) {
	if name != "" {
		switch filepath.Base(name) {
		case ".", "..", string(filepath.Separator):
			return "", fmt.Errorf("%w: %q is not a file name", ErrUnsafeOutput, name)
		}
	}
	return p.cfg.OutputPath(name), nil
}

// checkOutput rejects targets that would replace an input of the render or
// that resolve to a directory. Outputs are removed before writing, so a
// collision destroys the input.
func (p *Pipeline) checkOutput(output, input string) error {
	target := absPath(output)
	info, statErr := os.Stat(output)
	if statErr == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrUnsafeOutput, output)
	}

	for _, in := range []string{input, p.cfg.Annotations.Path} {
		if in == "" {
			continue
		}
		if absPath(in) == target {
			return fmt.Errorf("%w: %s is an input", ErrUnsafeOutput, output)
		}
		if statErr != nil {
			continue
		}
		if inInfo, err := os.Stat(in); err == nil && os.SameFile(info, inInfo) {
			return fmt.Errorf("%w: %s is an input", ErrUnsafeOutput, output)
		}
	}
	return nil
}

// Reserve claims output for a single writer. The returned func releases it.
func (p *Pipeline) Reserve(output string) (func(), error) {
	release, ok := p.locks.acquire(output)
	if !ok {
		p.logger.Warn().Str("output", output).Msg("render rejected, output busy")
		return nil, ErrOutputBusy
	}
	return release, nil
}

// FFmpegAvailable reports whether renders can run at all
func (p *Pipeline) FFmpegAvailable() bool {
	return p.ffmpeg.Available()
}

// encodeOptions maps the ffmpeg config onto encoder options. A negative
// crf leaves the encoder default.
func (p *Pipeline) encodeOptions() ffmpeg.EncodeOptions {
	enc := ffmpeg.EncodeOptions{Preset: p.cfg.FFmpeg.Preset}
	if crf := p.cfg.FFmpeg.CRF; crf >= 0 {
		enc.CRF = &crf
	}
	return enc
}

// Render synthesizes plan and writes it to the output path. Only one
// render may target a given path at a time.
func (p *Pipeline) Render(ctx context.Context, plan clips.EditPlan, opts RenderOptions) (string, error) {
	output := opts.OutputPath
	if output == "" {
		output = p.cfg.OutputPath("")
	}
	input := opts.InputPath
	if input == "" {
		input = p.cfg.Edit.SourceVideo
	}
	if err := p.checkOutput(output, input); err != nil {
		p.logger.Warn().Err(err).Msg("render rejected")
		return "", err
	}

	release, err := p.Reserve(output)
	if err != nil {
		return "", err
	}
	defer release()

	desc, err := ffmpeg.Synthesize(plan)
	if err != nil {
		return "", err
	}

	if p.cfg.Edit.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Edit.Timeout)
		defer cancel()
	}

	if opts.CheckResolution {
		if _, err := p.ffmpeg.CheckWorkingResolution(ctx, input, plan.WorkW, plan.WorkH); err != nil {
			p.logger.Warn().Err(err).Msg("could not probe source resolution")
		}
	}

	p.logger.Info().
		Str("input", input).
		Str("output", output).
		Int("segments", len(plan.Segments)).
		Float64("duration", plan.TotalDuration()).
		Msg("starting render")

	err = p.ffmpeg.RenderPlan(ctx, input, output, desc, ffmpeg.RenderOptions{
		Encode:       p.encodeOptions(),
		ProgressFunc: opts.Progress,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			p.logger.Error().Str("output", output).Dur("timeout", p.cfg.Edit.Timeout).Msg("render timed out")
		}
		return "", err
	}

	if opts.onComplete != nil {
		if err := opts.onComplete(output); err != nil {
			return "", err
		}
	}

	return output, nil
}

// RenderFile renders like Render and opens the result while the output is
// still reserved. The caller closes the file.
func (p *Pipeline) RenderFile(ctx context.Context, plan clips.EditPlan, opts RenderOptions) (*os.File, error) {
	var f *os.File
	opts.onComplete = func(path string) error {
		var err error
		f, err = os.Open(path)
		return err
	}
	if _, err := p.Render(ctx, plan, opts); err != nil {
		return nil, err
	}
	return f, nil
}

// Still writes one cropped frame at the matched instant
func (p *Pipeline) Still(ctx context.Context, opts StillOptions) (matcher.Result, error) {
	res, err := p.Match()
	if err != nil {
		return res, err
	}
	if !res.HasBox {
		return res, fmt.Errorf("no bounding box at %.3fs to crop", res.Seconds())
	}

	input := opts.InputPath
	if input == "" {
		input = p.cfg.Edit.SourceVideo
	}
	if err := p.checkOutput(opts.OutputPath, input); err != nil {
		return res, err
	}

	workW, workH := p.cfg.Edit.WorkWidth, p.cfg.Edit.WorkHeight
	err = p.ffmpeg.ExtractStill(ctx, input, ffmpeg.StillOptions{
		At:     util.SecondsToDuration(res.Seconds()),
		Crop:   overlays.DirectBox(res.Box, float64(workW), float64(workH)),
		WorkW:  workW,
		WorkH:  workH,
		Output: opts.OutputPath,
	})
	return res, err
}
