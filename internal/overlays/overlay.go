package overlays

import (
	"math"
	"sort"

	"github.com/kikiluvv/spotlight/internal/timeline"
)

// DefaultTolerance absorbs jitter between playback-time samples
const DefaultTolerance = 0.5

// Resolve returns the interval whose start is closest to t, provided the
// difference is within tolerance. Equal differences keep the earlier interval.
func Resolve(t float64, intervals []timeline.AppearanceInterval, tolerance float64) (timeline.AppearanceInterval, bool) {
	best := -1
	bestDiff := math.Inf(1)
	for i, iv := range intervals {
		d := math.Abs(iv.Start - t)
		if d <= tolerance && d < bestDiff {
			best, bestDiff = i, d
		}
	}
	if best < 0 {
		return timeline.AppearanceInterval{}, false
	}
	return intervals[best], true
}

// Registry holds named fixed-window sizes
type Registry struct {
	windows map[string]Size
}

// NewRegistry creates a registry seeded with the built-in window presets
func NewRegistry() *Registry {
	r := &Registry{
		windows: make(map[string]Size),
	}
	r.Register(Square700, Size{W: 700, H: 700})
	r.Register(Portrait810x1400, Size{W: 810 / 2, H: 1400 / 2})
	return r
}

// Register adds or replaces a window preset
func (r *Registry) Register(name string, size Size) {
	r.windows[name] = size
}

// Get retrieves a window preset by name
func (r *Registry) Get(name string) (Size, bool) {
	size, ok := r.windows[name]
	return size, ok
}

// List returns preset names in sorted order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.windows))
	for name := range r.windows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Presets for common windows
var (
	Square700        = "700x700"
	Portrait810x1400 = "810x1400"
)
