package annotations

// BoundingBox is a detection box expressed as fractions of the frame size.
// Values are expected in [0,1] but are not validated here.
type BoundingBox struct {
	Width  float64 `json:"Width" msgpack:"Width"`
	Height float64 `json:"Height" msgpack:"Height"`
	Left   float64 `json:"Left" msgpack:"Left"`
	Top    float64 `json:"Top" msgpack:"Top"`
}

// CenterX returns the horizontal center as a fraction of frame width
func (b BoundingBox) CenterX() float64 {
	return b.Left + b.Width/2
}

// CenterY returns the vertical center as a fraction of frame height
func (b BoundingBox) CenterY() float64 {
	return b.Top + b.Height/2
}

// IsZero reports whether the box carries no geometry at all
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// Kind separates the two event streams
type Kind int

const (
	KindLabel Kind = iota
	KindSubject
)

func (k Kind) String() string {
	switch k {
	case KindLabel:
		return "label"
	case KindSubject:
		return "subject"
	default:
		return "unknown"
	}
}

// DetectionEvent is one timestamped observation of a label or a named subject
type DetectionEvent struct {
	Kind        Kind
	TimestampMs int64
	Name        string
	Box         BoundingBox
	Confidence  *float64
}

// Seconds returns the event timestamp in seconds
func (e DetectionEvent) Seconds() float64 {
	return Seconds(e.TimestampMs)
}

// Seconds converts a millisecond timestamp to seconds. This is the only
// place the unit changes; no rounding is applied.
func Seconds(ms int64) float64 {
	return float64(ms) / 1000
}
