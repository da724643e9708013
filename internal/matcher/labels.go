package matcher

import (
	"sort"

	"github.com/kikiluvv/spotlight/internal/annotations"
)

// DefaultRequiredLabels describes a man in formal wear facing the camera
var DefaultRequiredLabels = []string{
	"Adult", "Male", "Man", "Face",
	"Clothing", "Formal Wear", "Suit", "Shirt",
}

// RequiredLabelSet is an ordered set of label names that must all be present
// at a single timestamp
type RequiredLabelSet struct {
	names []string
}

// NewRequiredLabelSet builds a set, dropping duplicates and keeping first-seen order
func NewRequiredLabelSet(names ...string) RequiredLabelSet {
	seen := make(map[string]struct{}, len(names))
	ordered := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		ordered = append(ordered, n)
	}
	return RequiredLabelSet{names: ordered}
}

// Names returns the labels in configured order
func (r RequiredLabelSet) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of required labels
func (r RequiredLabelSet) Len() int {
	return len(r.names)
}

// SatisfiedBy reports whether present is a superset of the required labels
func (r RequiredLabelSet) SatisfiedBy(present map[string]struct{}) bool {
	for _, n := range r.names {
		if _, ok := present[n]; !ok {
			return false
		}
	}
	return true
}

// LabelIndex groups label events by timestamp
type LabelIndex struct {
	times []int64
	names map[int64]map[string]struct{}
}

// IndexLabels builds the timestamp -> label-name-set mapping
func IndexLabels(labels []annotations.DetectionEvent) *LabelIndex {
	ix := &LabelIndex{
		names: make(map[int64]map[string]struct{}),
	}
	for _, e := range labels {
		set, ok := ix.names[e.TimestampMs]
		if !ok {
			set = make(map[string]struct{})
			ix.names[e.TimestampMs] = set
			ix.times = append(ix.times, e.TimestampMs)
		}
		set[e.Name] = struct{}{}
	}
	sort.Slice(ix.times, func(i, j int) bool { return ix.times[i] < ix.times[j] })
	return ix
}

// Timestamps returns every distinct label timestamp in ascending order
func (ix *LabelIndex) Timestamps() []int64 {
	out := make([]int64, len(ix.times))
	copy(out, ix.times)
	return out
}

// NamesAt returns the sorted label names present at ms
func (ix *LabelIndex) NamesAt(ms int64) []string {
	set := ix.names[ms]
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// FirstMatch scans timestamps in ascending order and returns the first whose
// label set covers required
func (ix *LabelIndex) FirstMatch(required RequiredLabelSet) (int64, bool) {
	for _, ts := range ix.times {
		if required.SatisfiedBy(ix.names[ts]) {
			return ts, true
		}
	}
	return 0, false
}

// MatchLabels returns the earliest timestamp at which all required labels
// co-occur. ok is false when no timestamp qualifies.
func MatchLabels(labels []annotations.DetectionEvent, required RequiredLabelSet) (int64, bool) {
	return IndexLabels(labels).FirstMatch(required)
}

// LabelBoxAt returns the box of the first instance of name at ms, skipping
// rows that carried no instance geometry
func LabelBoxAt(labels []annotations.DetectionEvent, name string, ms int64) (annotations.BoundingBox, bool) {
	for _, e := range labels {
		if e.TimestampMs == ms && e.Name == name && !e.Box.IsZero() {
			return e.Box, true
		}
	}
	return annotations.BoundingBox{}, false
}
