package timeline

import (
	"sort"

	"github.com/kikiluvv/spotlight/internal/annotations"
)

// Mode selects how interval ends are derived
type Mode string

const (
	// ModeSubject ends each interval at the next appearance of the same subject
	ModeSubject Mode = "subject"
	// ModeRaw ends each interval at the next detection of any subject
	ModeRaw Mode = "raw"
)

// AppearanceInterval is a span during which a subject's last known box is current
type AppearanceInterval struct {
	Start float64                 `json:"start"`
	End   float64                 `json:"end"`
	Box   annotations.BoundingBox `json:"boundingBox"`
}

// Duration returns End - Start in seconds
func (a AppearanceInterval) Duration() float64 {
	return a.End - a.Start
}

// FilterSubject keeps only events for name, preserving order
func FilterSubject(events []annotations.DetectionEvent, name string) []annotations.DetectionEvent {
	out := make([]annotations.DetectionEvent, 0)
	for _, e := range events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// sortedCopy stable-sorts events by timestamp without touching the input
func sortedCopy(events []annotations.DetectionEvent) []annotations.DetectionEvent {
	out := make([]annotations.DetectionEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampMs < out[j].TimestampMs
	})
	return out
}

// Build turns time-ordered events into one interval per event. Each interval
// ends where the next begins; the last one ends at its own start.
func Build(events []annotations.DetectionEvent) []AppearanceInterval {
	ordered := sortedCopy(events)
	out := make([]AppearanceInterval, len(ordered))
	for i, e := range ordered {
		start := e.Seconds()
		end := start
		if i+1 < len(ordered) {
			end = ordered[i+1].Seconds()
		}
		out[i] = AppearanceInterval{Start: start, End: end, Box: e.Box}
	}
	return out
}

// BuildFor filters events to name and builds its intervals
func BuildFor(events []annotations.DetectionEvent, name string) []AppearanceInterval {
	return Build(FilterSubject(events, name))
}

// BuildUnfiltered builds intervals for name where each one is terminated by
// the next detection of any subject, not just name
func BuildUnfiltered(events []annotations.DetectionEvent, name string) []AppearanceInterval {
	ordered := sortedCopy(events)
	out := make([]AppearanceInterval, 0)
	for i, e := range ordered {
		if e.Name != name {
			continue
		}
		start := e.Seconds()
		end := start
		if i+1 < len(ordered) {
			end = ordered[i+1].Seconds()
		}
		out = append(out, AppearanceInterval{Start: start, End: end, Box: e.Box})
	}
	return out
}

// BuildWithMode dispatches on the configured interval mode
func BuildWithMode(events []annotations.DetectionEvent, name string, mode Mode) []AppearanceInterval {
	if mode == ModeRaw {
		return BuildUnfiltered(events, name)
	}
	return BuildFor(events, name)
}

// Compress merges neighbouring intervals that carry the same box
func Compress(intervals []AppearanceInterval) []AppearanceInterval {
	if len(intervals) == 0 {
		return intervals
	}

	compressed := []AppearanceInterval{intervals[0]}
	for i := 1; i < len(intervals); i++ {
		last := &compressed[len(compressed)-1]
		if intervals[i].Box == last.Box && intervals[i].Start == last.End {
			last.End = intervals[i].End
			continue
		}
		compressed = append(compressed, intervals[i])
	}

	return compressed
}
