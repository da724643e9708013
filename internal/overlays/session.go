package overlays

import (
	"fmt"

	"github.com/kikiluvv/spotlight/internal/timeline"
	"github.com/rs/zerolog"
)

// Mode selects how an active interval is turned into frame geometry
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeWindow Mode = "window"
	ModePan    Mode = "pan"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDirect, ModeWindow, ModePan:
		return Mode(s), nil
	case "":
		return ModeDirect, nil
	default:
		return "", fmt.Errorf("unknown overlay mode %q", s)
	}
}

// Geometry is what to draw for one playback sample
type Geometry struct {
	Mode     Mode                        `json:"mode"`
	Interval timeline.AppearanceInterval `json:"interval"`
	Box      PixelBox                    `json:"box"`
	Window   *Window                     `json:"window,omitempty"`
	Pan      *Offset                     `json:"pan,omitempty"`
}

// SessionOptions configures a playback session
type SessionOptions struct {
	FrameW    float64
	FrameH    float64
	// Tolerance of 0 requires exact alignment; negative selects
	// DefaultTolerance
	Tolerance float64
	Mode      Mode
	Window    Size
	Container Size
}

// Session resolves overlay geometry for one playback session. Samples are
// expected one at a time from a single caller; it holds no locks.
type Session struct {
	logger    zerolog.Logger
	opts      SessionOptions
	intervals []timeline.AppearanceInterval
	ready     bool
}

// NewSession creates a session that stays inert until Load is called
func NewSession(logger zerolog.Logger, opts SessionOptions) *Session {
	if opts.Tolerance < 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.Mode == "" {
		opts.Mode = ModeDirect
	}
	return &Session{
		logger: logger.With().Str("component", "overlay").Logger(),
		opts:   opts,
	}
}

// Load installs the intervals and opens the session for sampling
func (s *Session) Load(intervals []timeline.AppearanceInterval) {
	s.intervals = intervals
	s.ready = true
	s.logger.Debug().Int("intervals", len(intervals)).Msg("overlay session ready")
}

// Ready reports whether Load has completed
func (s *Session) Ready() bool {
	return s.ready
}

// Sample resolves geometry for playback time t. ok is false when nothing
// should be drawn, including before Load.
func (s *Session) Sample(t float64) (Geometry, bool) {
	if !s.ready {
		return Geometry{}, false
	}

	iv, ok := Resolve(t, s.intervals, s.opts.Tolerance)
	if !ok {
		return Geometry{}, false
	}

	return Compute(iv, s.opts), true
}

// Compute builds the geometry for an already-resolved interval
func Compute(iv timeline.AppearanceInterval, opts SessionOptions) Geometry {
	g := Geometry{
		Mode:     opts.Mode,
		Interval: iv,
		Box:      DirectBox(iv.Box, opts.FrameW, opts.FrameH),
	}

	switch opts.Mode {
	case ModeWindow:
		w := FixedWindow(iv.Box, opts.FrameW, opts.FrameH, opts.Window)
		g.Window = &w
		g.Box = w.Box
	case ModePan:
		container := opts.Container
		if container.W == 0 && container.H == 0 {
			container = Size{W: opts.FrameW, H: opts.FrameH}
		}
		off := PanOffset(iv.Box, opts.FrameW, opts.FrameH, container)
		g.Pan = &off
	}

	return g
}
