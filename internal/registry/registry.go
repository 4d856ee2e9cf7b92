// Package registry holds the labeled entities of one editing session,
// keyed by exact span.
package registry

import "github.com/hpungsan/tagline/internal/sentence"

// Registry is a set of entities unique by (start,end).
// It is owned by a single session and is not safe for concurrent use.
type Registry struct {
	labels map[sentence.Span]sentence.Label
	order  []sentence.Span // insertion order, for stable listing
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{labels: make(map[sentence.Span]sentence.Label)}
}

// FromEntities builds a registry from stored entities. When two entities
// share a span the later one wins; the earlier ones are returned as dropped.
func FromEntities(entities []sentence.Entity) (*Registry, []sentence.Entity) {
	r := New()
	var dropped []sentence.Entity
	for _, e := range entities {
		if prev, ok := r.FindAt(e.Start, e.End); ok {
			dropped = append(dropped, prev)
		}
		r.Upsert(e.Start, e.End, e.Label)
	}
	return r, dropped
}

// FindAt returns the entity at exactly [start,end), if any.
func (r *Registry) FindAt(start, end int) (sentence.Entity, bool) {
	label, ok := r.labels[sentence.Span{Start: start, End: end}]
	if !ok {
		return sentence.Entity{}, false
	}
	return sentence.Entity{Start: start, End: end, Label: label}, true
}

// Upsert sets the label at [start,end), replacing any existing one.
// It reports false, leaving the registry unchanged, if label is not assignable.
func (r *Registry) Upsert(start, end int, label sentence.Label) bool {
	if !label.Valid() {
		return false
	}
	span := sentence.Span{Start: start, End: end}
	if _, ok := r.labels[span]; !ok {
		r.order = append(r.order, span)
	}
	r.labels[span] = label
	return true
}

// Remove deletes the entity at [start,end). Absent spans are a no-op.
// It reports whether an entity was removed.
func (r *Registry) Remove(start, end int) bool {
	span := sentence.Span{Start: start, End: end}
	if _, ok := r.labels[span]; !ok {
		return false
	}
	delete(r.labels, span)
	for i, s := range r.order {
		if s == span {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// ToList returns a fresh slice of the current entities.
// Order is insertion order and carries no meaning.
func (r *Registry) ToList() []sentence.Entity {
	out := make([]sentence.Entity, 0, len(r.order))
	for _, span := range r.order {
		out = append(out, sentence.Entity{Start: span.Start, End: span.End, Label: r.labels[span]})
	}
	return out
}

// Len returns the number of entities.
func (r *Registry) Len() int {
	return len(r.labels)
}

// Clone returns an independent copy.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		labels: make(map[sentence.Span]sentence.Label, len(r.labels)),
		order:  append([]sentence.Span(nil), r.order...),
	}
	for span, label := range r.labels {
		c.labels[span] = label
	}
	return c
}

// Equal reports whether both registries hold the same entity set, ignoring order.
func (r *Registry) Equal(other *Registry) bool {
	if len(r.labels) != len(other.labels) {
		return false
	}
	for span, label := range r.labels {
		if l, ok := other.labels[span]; !ok || l != label {
			return false
		}
	}
	return true
}
