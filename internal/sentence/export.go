package sentence

import (
	"encoding/json"
	"fmt"
)

// ExportHeader is the first line of a JSONL training export.
type ExportHeader struct {
	TaglineExport bool   `json:"_tagline_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
	Count         int    `json:"count,omitempty"`
}

// TrainingSpan is an entity in training form: [start, end, "LABEL"].
type TrainingSpan struct {
	Start int
	End   int
	Label Label
}

// MarshalJSON encodes the span as a three-element array.
func (s TrainingSpan) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Start, s.End, s.Label.String()})
}

// UnmarshalJSON decodes a three-element array.
func (s *TrainingSpan) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("training span: want 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &s.Start); err != nil {
		return fmt.Errorf("training span start: %w", err)
	}
	if err := json.Unmarshal(raw[1], &s.End); err != nil {
		return fmt.Errorf("training span end: %w", err)
	}
	var name string
	if err := json.Unmarshal(raw[2], &name); err != nil {
		return fmt.Errorf("training span label: %w", err)
	}
	label, err := ParseLabel(name)
	if err != nil {
		return err
	}
	s.Label = label
	return nil
}

// TrainingRecord is one sentence in a JSONL training export.
type TrainingRecord struct {
	ID       int64          `json:"id"`
	Text     string         `json:"text"`
	Entities []TrainingSpan `json:"entities"`
}

// ToTrainingRecord converts a sentence for export.
func ToTrainingRecord(s *Sentence) *TrainingRecord {
	spans := make([]TrainingSpan, 0, len(s.Entities))
	for _, e := range Canonicalize(s.Entities) {
		spans = append(spans, TrainingSpan{Start: e.Start, End: e.End, Label: e.Label})
	}
	return &TrainingRecord{
		ID:       s.ID,
		Text:     s.Text,
		Entities: spans,
	}
}

// ImportRecord is one line of an import file. Entities may use either the
// object form ({"start","end","label"}) or the training form handled by
// TrainingRecord; the object form is what the sentence store emits.
type ImportRecord struct {
	// Header detection field - true only for the header line of an export
	TaglineExport bool `json:"_tagline_export,omitempty"`

	Text      string   `json:"text"`
	Entities  []Entity `json:"-"`
	IsTreated *bool    `json:"isTreated,omitempty"`
}

// UnmarshalJSON accepts both entity encodings.
func (r *ImportRecord) UnmarshalJSON(b []byte) error {
	var raw struct {
		TaglineExport bool            `json:"_tagline_export"`
		Text          string          `json:"text"`
		Entities      json.RawMessage `json:"entities"`
		IsTreated     *bool           `json:"isTreated"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.TaglineExport = raw.TaglineExport
	r.Text = raw.Text
	r.IsTreated = raw.IsTreated
	r.Entities = nil

	if len(raw.Entities) == 0 || string(raw.Entities) == "null" {
		return nil
	}

	var objects []Entity
	if err := json.Unmarshal(raw.Entities, &objects); err == nil {
		r.Entities = objects
		return nil
	}

	var spans []TrainingSpan
	if err := json.Unmarshal(raw.Entities, &spans); err != nil {
		return fmt.Errorf("entities: %w", err)
	}
	r.Entities = make([]Entity, 0, len(spans))
	for _, s := range spans {
		r.Entities = append(r.Entities, Entity{Start: s.Start, End: s.End, Label: s.Label})
	}
	return nil
}
