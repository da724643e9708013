package annotations

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformedAnnotationData is returned when raw detection data cannot be
// decoded or lacks one of the required event arrays.
var ErrMalformedAnnotationData = errors.New("malformed annotation data")

// Format identifies the encoding of raw annotation data
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// FormatForPath picks a format from the file extension, defaulting to JSON
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk":
		return FormatMsgpack
	default:
		return FormatJSON
	}
}

// Store holds the two event sequences loaded from one annotation file.
// It is never mutated after Load returns.
type Store struct {
	labels   []DetectionEvent
	subjects []DetectionEvent
}

// rawData mirrors the detection service output. Pointers distinguish a
// missing array from an empty one.
type rawData struct {
	Labels      *[]rawLabel     `json:"Labels" msgpack:"Labels"`
	Celebrities *[]rawCelebrity `json:"Celebrities" msgpack:"Celebrities"`
}

type rawLabel struct {
	Timestamp int64 `json:"Timestamp" msgpack:"Timestamp"`
	Label     struct {
		Name      string        `json:"Name" msgpack:"Name"`
		Instances []rawInstance `json:"Instances" msgpack:"Instances"`
	} `json:"Label" msgpack:"Label"`
}

type rawInstance struct {
	BoundingBox BoundingBox `json:"BoundingBox" msgpack:"BoundingBox"`
	Confidence  *float64    `json:"Confidence,omitempty" msgpack:"Confidence,omitempty"`
}

type rawCelebrity struct {
	Timestamp int64 `json:"Timestamp" msgpack:"Timestamp"`
	Celebrity struct {
		Name        string      `json:"Name" msgpack:"Name"`
		BoundingBox BoundingBox `json:"BoundingBox" msgpack:"BoundingBox"`
		Confidence  *float64    `json:"Confidence,omitempty" msgpack:"Confidence,omitempty"`
	} `json:"Celebrity" msgpack:"Celebrity"`
}

// Parse decodes JSON annotation data
func Parse(raw []byte) (*Store, error) {
	return Load(bytes.NewReader(raw), FormatJSON)
}

// Load decodes annotation data in the given format and builds the store
func Load(r io.Reader, format Format) (*Store, error) {
	var data rawData

	switch format {
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(&data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAnnotationData, err)
		}
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAnnotationData, err)
		}
	default:
		return nil, fmt.Errorf("unsupported annotation format %q", format)
	}

	return fromRaw(data)
}

// LoadFile reads an annotation file, choosing the decoder by extension
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotations: %w", err)
	}
	defer f.Close()

	store, err := Load(f, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return store, nil
}

func fromRaw(data rawData) (*Store, error) {
	if data.Labels == nil {
		return nil, fmt.Errorf("%w: missing Labels array", ErrMalformedAnnotationData)
	}
	if data.Celebrities == nil {
		return nil, fmt.Errorf("%w: missing Celebrities array", ErrMalformedAnnotationData)
	}

	s := &Store{
		labels:   make([]DetectionEvent, 0, len(*data.Labels)),
		subjects: make([]DetectionEvent, 0, len(*data.Celebrities)),
	}

	for i, l := range *data.Labels {
		if l.Timestamp < 0 {
			return nil, fmt.Errorf("%w: label %d has negative timestamp %d", ErrMalformedAnnotationData, i, l.Timestamp)
		}
		// A label row without instances still marks the label as present
		if len(l.Label.Instances) == 0 {
			s.labels = append(s.labels, DetectionEvent{
				Kind:        KindLabel,
				TimestampMs: l.Timestamp,
				Name:        l.Label.Name,
			})
			continue
		}
		for _, inst := range l.Label.Instances {
			s.labels = append(s.labels, DetectionEvent{
				Kind:        KindLabel,
				TimestampMs: l.Timestamp,
				Name:        l.Label.Name,
				Box:         inst.BoundingBox,
				Confidence:  inst.Confidence,
			})
		}
	}

	for i, c := range *data.Celebrities {
		if c.Timestamp < 0 {
			return nil, fmt.Errorf("%w: celebrity %d has negative timestamp %d", ErrMalformedAnnotationData, i, c.Timestamp)
		}
		s.subjects = append(s.subjects, DetectionEvent{
			Kind:        KindSubject,
			TimestampMs: c.Timestamp,
			Name:        c.Celebrity.Name,
			Box:         c.Celebrity.BoundingBox,
			Confidence:  c.Celebrity.Confidence,
		})
	}

	return s, nil
}

// Labels returns a copy of the label event sequence in load order
func (s *Store) Labels() []DetectionEvent {
	out := make([]DetectionEvent, len(s.labels))
	copy(out, s.labels)
	return out
}

// Subjects returns a copy of the subject event sequence in load order
func (s *Store) Subjects() []DetectionEvent {
	out := make([]DetectionEvent, len(s.subjects))
	copy(out, s.subjects)
	return out
}

// SubjectNames returns the distinct subject names in first-seen order
func (s *Store) SubjectNames() []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, e := range s.subjects {
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		names = append(names, e.Name)
	}
	return names
}

// EncodeMsgpack writes the store back out in the raw schema as MessagePack.
// Label events sharing a timestamp and name are regrouped into one row.
func (s *Store) EncodeMsgpack(w io.Writer) error {
	labels := make([]rawLabel, 0)
	index := make(map[string]int)
	for _, e := range s.labels {
		key := fmt.Sprintf("%d/%s", e.TimestampMs, e.Name)
		i, ok := index[key]
		if !ok {
			var row rawLabel
			row.Timestamp = e.TimestampMs
			row.Label.Name = e.Name
			labels = append(labels, row)
			i = len(labels) - 1
			index[key] = i
		}
		if e.Box.IsZero() && e.Confidence == nil {
			continue
		}
		labels[i].Label.Instances = append(labels[i].Label.Instances, rawInstance{
			BoundingBox: e.Box,
			Confidence:  e.Confidence,
		})
	}

	celebs := make([]rawCelebrity, 0, len(s.subjects))
	for _, e := range s.subjects {
		var row rawCelebrity
		row.Timestamp = e.TimestampMs
		row.Celebrity.Name = e.Name
		row.Celebrity.BoundingBox = e.Box
		row.Celebrity.Confidence = e.Confidence
		celebs = append(celebs, row)
	}

	return msgpack.NewEncoder(w).Encode(rawData{Labels: &labels, Celebrities: &celebs})
}
