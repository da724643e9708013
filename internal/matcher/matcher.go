package matcher

import (
	"errors"

	"github.com/kikiluvv/spotlight/internal/annotations"
	"github.com/rs/zerolog"
)

// ErrNoMatchFound lets callers turn a missing match into an error when they
// need one. The matcher itself reports no match through its ok result.
var ErrNoMatchFound = errors.New("no matching instant found")

// Source names where the reported instant came from
type Source string

const (
	SourceLabel    Source = "label"
	SourceIdentity Source = "identity"
)

// Result is the instant of interest picked by the matcher
type Result struct {
	InstantMs int64
	Source    Source
	Box       annotations.BoundingBox
	HasBox    bool
	// LabelMs is the timestamp where the required labels co-occurred
	LabelMs int64
	// Nearest is the subject event closest to LabelMs, nil when there were no subjects
	Nearest *annotations.DetectionEvent
}

// Seconds returns the instant in seconds
func (r Result) Seconds() float64 {
	return annotations.Seconds(r.InstantMs)
}

// Config configures a Matcher
type Config struct {
	Required          []string
	PreferredIdentity string
	// AnchorLabel supplies the box when the label timestamp is reported
	AnchorLabel string
}

// Matcher finds the instant where a subject of interest is on screen
type Matcher struct {
	logger    zerolog.Logger
	required  RequiredLabelSet
	preferred string
	anchor    string
}

// New creates a matcher
func New(logger zerolog.Logger, cfg Config) *Matcher {
	required := cfg.Required
	if required == nil {
		required = DefaultRequiredLabels
	}
	return &Matcher{
		logger:    logger.With().Str("component", "matcher").Logger(),
		required:  NewRequiredLabelSet(required...),
		preferred: cfg.PreferredIdentity,
		anchor:    cfg.AnchorLabel,
	}
}

// Required returns the configured label set
func (m *Matcher) Required() RequiredLabelSet {
	return m.required
}

// NearestSubject picks the subject event closest in time to instantMs. Ties
// keep the earliest event in sequence order.
func NearestSubject(subjects []annotations.DetectionEvent, instantMs int64) (annotations.DetectionEvent, bool) {
	if len(subjects) == 0 {
		return annotations.DetectionEvent{}, false
	}
	best := 0
	bestDiff := absDiff(subjects[0].TimestampMs, instantMs)
	for i := 1; i < len(subjects); i++ {
		d := absDiff(subjects[i].TimestampMs, instantMs)
		if d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return subjects[best], true
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

type nearestOutcome int

const (
	noSubjects nearestOutcome = iota
	identityMatch
	otherIdentity
)

type instantFrom int

const (
	instantFromLabel instantFrom = iota
	instantFromSubject
)

type boxFrom int

const (
	boxNone boxFrom = iota
	boxAnchorLabel
)

type decision struct {
	instant instantFrom
	box     boxFrom
}

// decisions maps the nearest-subject outcome to which instant and box are
// reported. Only an identity match moves the instant off the label timestamp;
// the box always comes from the anchor label at the label timestamp.
var decisions = map[nearestOutcome]decision{
	noSubjects:    {instant: instantFromLabel, box: boxNone},
	identityMatch: {instant: instantFromSubject, box: boxAnchorLabel},
	otherIdentity: {instant: instantFromLabel, box: boxAnchorLabel},
}

func (m *Matcher) classify(nearest annotations.DetectionEvent, found bool) nearestOutcome {
	switch {
	case !found:
		return noSubjects
	case m.preferred != "" && nearest.Name == m.preferred:
		return identityMatch
	default:
		return otherIdentity
	}
}

// Match runs the required-label match followed by the nearest-subject
// selection. ok is false when the labels never co-occur.
func (m *Matcher) Match(labels, subjects []annotations.DetectionEvent) (Result, bool) {
	labelMs, ok := MatchLabels(labels, m.required)
	if !ok {
		m.logger.Debug().
			Strs("required", m.required.Names()).
			Msg("no timestamp covers required labels")
		return Result{}, false
	}

	nearest, found := NearestSubject(subjects, labelMs)
	outcome := m.classify(nearest, found)
	d := decisions[outcome]

	res := Result{
		InstantMs: labelMs,
		Source:    SourceLabel,
		LabelMs:   labelMs,
	}
	if found {
		n := nearest
		res.Nearest = &n
	}

	if d.instant == instantFromSubject {
		res.InstantMs = nearest.TimestampMs
		res.Source = SourceIdentity
	}

	if d.box == boxAnchorLabel && m.anchor != "" {
		res.Box, res.HasBox = LabelBoxAt(labels, m.anchor, labelMs)
	}

	m.logger.Debug().
		Int64("label_ms", labelMs).
		Int64("instant_ms", res.InstantMs).
		Str("source", string(res.Source)).
		Bool("has_box", res.HasBox).
		Msg("match resolved")

	return res, true
}

// MatchStore runs Match over a loaded store
func (m *Matcher) MatchStore(store *annotations.Store) (Result, bool) {
	return m.Match(store.Labels(), store.Subjects())
}
