package pipeline

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/kikiluvv/spotlight/internal/annotations"
	"github.com/kikiluvv/spotlight/internal/clips"
	"github.com/kikiluvv/spotlight/internal/ffmpeg"
)

// ErrOutputBusy is returned when another render is writing the same output
var ErrOutputBusy = errors.New("output is being rendered by another request")

// ErrUnsafeOutput is returned when an output path does not name a fresh
// artifact: it is a directory or one of the render's inputs
var ErrUnsafeOutput = errors.New("output path cannot be used as a render target")

// SegmentRequest is one client supplied segment of an edit request
type SegmentRequest struct {
	Start float64                 `json:"start"`
	End   float64                 `json:"end"`
	Box   annotations.BoundingBox `json:"boundingBox"`
}

// EditRequest is the body of an edit request
type EditRequest struct {
	Timestamps     []SegmentRequest `json:"timestamps"`
	OutputFileName string           `json:"outputFileName"`
}

// Segments converts the request into clip segments in request order
func (r EditRequest) Segments() []clips.Segment {
	out := make([]clips.Segment, len(r.Timestamps))
	for i, ts := range r.Timestamps {
		out[i] = clips.Segment{Start: ts.Start, End: ts.End, Box: ts.Box}
	}
	return out
}

// RenderOptions configures Render
type RenderOptions struct {
	// InputPath overrides the configured source video
	InputPath  string
	OutputPath string
	// CheckResolution probes the source and warns when it differs from
	// the working resolution
	CheckResolution bool
	Progress        ffmpeg.ProgressFunc

	onComplete func(path string) error
}

// StillOptions configures Still
type StillOptions struct {
	InputPath  string
	OutputPath string
}

// outputLocks admits one writer per output path
type outputLocks struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func newOutputLocks() *outputLocks {
	return &outputLocks{busy: make(map[string]struct{})}
}

func (l *outputLocks) key(path string) string {
	return absPath(path)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// acquire returns a release func, or false if path is already held
func (l *outputLocks) acquire(path string) (func(), bool) {
	k := l.key(path)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.busy[k]; held {
		return nil, false
	}
	l.busy[k] = struct{}{}

	return func() {
		l.mu.Lock()
		delete(l.busy, k)
		l.mu.Unlock()
	}, true
}
