package clips

import (
	"errors"
	"fmt"

	"github.com/kikiluvv/spotlight/internal/annotations"
	"github.com/kikiluvv/spotlight/internal/overlays"
	"github.com/kikiluvv/spotlight/internal/timeline"
)

// ErrInvalidSegment marks a segment whose times or crop cannot be used
var ErrInvalidSegment = errors.New("invalid segment")

// Segment is one crop-and-keep span of the source video
type Segment struct {
	Start float64                 `json:"start"`
	End   float64                 `json:"end"`
	Box   annotations.BoundingBox `json:"boundingBox"`
}

// Duration returns End - Start in seconds
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Crop converts the normalized box to whole-pixel crop geometry at the
// working resolution of the source, not the display resolution
func (s Segment) Crop(workW, workH int) (x, y, w, h int) {
	px := overlays.DirectBox(s.Box, float64(workW), float64(workH))
	return px.Rect(workW, workH)
}

// Validate checks ordering and that the crop is non-empty
func (s Segment) Validate(workW, workH int) error {
	if s.Start < 0 {
		return fmt.Errorf("%w: negative start %.3f", ErrInvalidSegment, s.Start)
	}
	if s.End < s.Start {
		return fmt.Errorf("%w: end %.3f before start %.3f", ErrInvalidSegment, s.End, s.Start)
	}
	if _, _, w, h := s.Crop(workW, workH); w <= 0 || h <= 0 {
		return fmt.Errorf("%w: empty crop %dx%d at %.3f", ErrInvalidSegment, w, h, s.Start)
	}
	return nil
}

// EditPlan is the ordered list of segments plus the frame sizes involved
type EditPlan struct {
	Segments []Segment
	// WorkW/WorkH must match the encoded resolution of the source video
	WorkW int
	WorkH int
	OutW  int
	OutH  int
}

// Empty reports whether the plan has no segments
func (p EditPlan) Empty() bool {
	return len(p.Segments) == 0
}

// TotalDuration sums segment durations
func (p EditPlan) TotalDuration() float64 {
	var total float64
	for _, s := range p.Segments {
		total += s.Duration()
	}
	return total
}

// FromIntervals maps appearance intervals to segments one to one
func FromIntervals(intervals []timeline.AppearanceInterval) []Segment {
	out := make([]Segment, len(intervals))
	for i, iv := range intervals {
		out[i] = Segment{Start: iv.Start, End: iv.End, Box: iv.Box}
	}
	return out
}

// DropEmpty removes zero-length segments, keeping order
func DropEmpty(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if s.Duration() > 0 {
			out = append(out, s)
		}
	}
	return out
}
