package sentence

import (
	"fmt"
	"sort"
	"time"
	"unicode/utf8"
)

// Span is a half-open interval [Start,End) over a sentence's text,
// counted in code points (runes), the same unit the sentence store uses.
type Span struct {
	Start int
	End   int
}

// Entity is a label bound to an exact span.
type Entity struct {
	Start int   `json:"start"`
	End   int   `json:"end"`
	Label Label `json:"label"`
}

// Span returns the entity's span.
func (e Entity) Span() Span {
	return Span{Start: e.Start, End: e.End}
}

// Sentence is the record held by the sentence store.
// Text is immutable once stored; Entities and IsTreated are editable;
// IsValid is computed by the store.
type Sentence struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Entities  []Entity  `json:"entities"`
	IsValid   bool      `json:"isValid"`
	IsTreated bool      `json:"isTreated"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Patch is the save body. Nil fields are left unchanged by the store.
type Patch struct {
	Entities  *[]Entity `json:"entities,omitempty"`
	IsTreated *bool     `json:"isTreated,omitempty"`
}

// Clone returns a deep copy.
func (s *Sentence) Clone() *Sentence {
	if s == nil {
		return nil
	}
	c := *s
	c.Entities = append([]Entity(nil), s.Entities...)
	return &c
}

// Len returns the text length in code points.
func Len(text string) int {
	return utf8.RuneCountInString(text)
}

// Slice returns text[start:end] in code points. Out-of-range bounds are clamped.
func Slice(text string, start, end int) string {
	runes := []rune(text)
	start = max(0, min(start, len(runes)))
	end = max(start, min(end, len(runes)))
	return string(runes[start:end])
}

// HasBothLocations reports whether entities carry at least one DEPARTURE
// and one ARRIVAL. The store derives IsValid from it.
func HasBothLocations(entities []Entity) bool {
	var departure, arrival bool
	for _, e := range entities {
		switch e.Label {
		case LabelDeparture:
			departure = true
		case LabelArrival:
			arrival = true
		}
		if departure && arrival {
			return true
		}
	}
	return false
}

// ValidateEntities checks label and bounds of each entity against text.
func ValidateEntities(text string, entities []Entity) error {
	n := Len(text)
	for i, e := range entities {
		if !e.Label.Valid() {
			return fmt.Errorf("entity %d: label must be one of %s", i, labelList())
		}
		if e.Start < 0 || e.End > n || e.Start >= e.End {
			return fmt.Errorf("entity %d: span [%d,%d) outside text of length %d", i, e.Start, e.End, n)
		}
	}
	return nil
}

// Canonicalize returns entities deduplicated by span (the last one wins)
// and sorted by (start, end).
func Canonicalize(entities []Entity) []Entity {
	bySpan := make(map[Span]Entity, len(entities))
	for _, e := range entities {
		bySpan[e.Span()] = e
	}
	out := make([]Entity, 0, len(bySpan))
	for _, e := range bySpan {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}
