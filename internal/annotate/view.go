package annotate

import (
	"github.com/hpungsan/tagline/internal/sentence"
	"github.com/hpungsan/tagline/internal/tokenize"
)

// View is a serializable snapshot of a session, used by the CLI and MCP.
type View struct {
	SentenceID   int64             `json:"sentence_id"`
	State        State             `json:"state"`
	Text         string            `json:"text,omitempty"`
	Tokens       []tokenize.Token  `json:"tokens"`
	Entities     []sentence.Entity `json:"entities"`
	IsTreated    bool              `json:"is_treated"`
	IsValid      bool              `json:"is_valid"`
	// WouldBeValid applies the validity rule to the local entities.
	WouldBeValid bool              `json:"would_be_valid"`
	Dirty        bool              `json:"dirty"`
	Selection    *PendingSelection `json:"selection,omitempty"`
	Issues       []Issue           `json:"issues,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// View returns a consistent snapshot of the session. Entities are sorted
// by span so repeated views of the same state compare equal.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		SentenceID: s.id,
		State:      s.state,
		Tokens:     append([]tokenize.Token{}, s.tokens...),
		Entities:   []sentence.Entity{},
		Dirty:      s.dirtyLocked(),
		Issues:     append([]Issue(nil), s.issues...),
	}
	if cur := s.sentenceLocked(); cur != nil {
		v.Text = cur.Text
		v.Entities = cur.Entities
		v.IsTreated = cur.IsTreated
		v.IsValid = cur.IsValid
		v.WouldBeValid = sentence.HasBothLocations(cur.Entities)
	}
	if s.selection != nil {
		sel := *s.selection
		v.Selection = &sel
	}
	if s.err != nil {
		v.Error = s.err.Error()
	}
	return v
}
