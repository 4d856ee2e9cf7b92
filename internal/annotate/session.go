// Package annotate implements the editing session for one sentence: the
// token view, the span registry, the pending selection, the treated flag,
// and synchronization with the sentence store through a Gateway.
package annotate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/logging"
	"github.com/hpungsan/tagline/internal/registry"
	"github.com/hpungsan/tagline/internal/sentence"
	"github.com/hpungsan/tagline/internal/tokenize"
)

// Gateway is the persistence boundary a session talks to.
type Gateway interface {
	Fetch(ctx context.Context, id int64) (*sentence.Sentence, error)
	Save(ctx context.Context, id int64, patch sentence.Patch) (*sentence.Sentence, error)
}

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateSaving
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IssueKind classifies a stored entity that could not be shown.
type IssueKind string

const (
	IssueMalformedSpan IssueKind = "malformed_span"
	IssueDuplicateSpan IssueKind = "duplicate_span"
)

// Issue records a stored entity dropped while building the registry.
type Issue struct {
	Kind   IssueKind       `json:"kind"`
	Entity sentence.Entity `json:"entity"`
	Reason string          `json:"reason"`
}

// PendingSelection is the token the user has picked and not yet labeled.
type PendingSelection struct {
	Start   int            `json:"start"`
	End     int            `json:"end"`
	Text    string         `json:"text"`
	Current sentence.Label `json:"current"`
}

// edit is a mutation made while a save was in flight.
type edit struct {
	start, end int
	label      sentence.Label
	treated    *bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Session is the editing session for one sentence. All methods are safe
// for concurrent use; gateway calls run without holding the lock.
type Session struct {
	mu     sync.Mutex
	gw     Gateway
	id     int64
	logger *slog.Logger

	state  State
	err    error
	loaded bool
	closed bool

	canonical *sentence.Sentence
	tokens    []tokenize.Token
	reg       *registry.Registry
	baseline  *registry.Registry
	treated   bool
	selection *PendingSelection
	issues    []Issue

	// journal collects edits made while state is StateSaving.
	journal []edit
}

// NewSession creates an idle session for sentence id. Call Load before editing.
func NewSession(gw Gateway, id int64, opts ...Option) *Session {
	s := &Session{
		gw:     gw,
		id:     id,
		logger: logging.GetLogger().With("sentence_id", id),
		state:  StateIdle,
		reg:    registry.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SentenceID returns the id of the sentence being edited.
func (s *Session) SentenceID() int64 {
	return s.id
}

// Load fetches the sentence and installs it. Allowed from Idle or Error.
// On failure the session moves to Error and previously loaded content, if
// any, is left as it was.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.NewSessionClosed(s.id)
	}
	switch s.state {
	case StateLoading:
		s.mu.Unlock()
		return errors.NewFetchInProgress(s.id)
	case StateIdle, StateError:
	default:
		st := s.state
		s.mu.Unlock()
		return errors.NewInvalidState("load", st.String())
	}
	s.state = StateLoading
	s.mu.Unlock()

	got, err := s.gw.Fetch(ctx, s.id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Debug("fetch completed after close, discarding")
		return errors.NewSessionClosed(s.id)
	}
	if err != nil {
		s.state = StateError
		s.err = errors.NewFetchFailed(s.id, err)
		s.logger.Warn("fetch failed", "error", err)
		return s.err
	}

	s.install(got)
	s.selection = nil
	s.journal = nil
	s.loaded = true
	s.state = StateReady
	s.err = nil
	s.logger.Debug("sentence loaded", "entities", s.reg.Len(), "issues", len(s.issues))
	return nil
}

// install replaces local state with a canonical sentence from the store.
// Stored entities that do not sit on exactly one word token are dropped
// and recorded as issues.
func (s *Session) install(got *sentence.Sentence) {
	s.canonical = got.Clone()
	s.tokens = tokenize.Tokenize(got.Text)
	s.issues = nil

	kept := make([]sentence.Entity, 0, len(got.Entities))
	for _, e := range got.Entities {
		reason := ""
		switch {
		case !e.Label.Valid():
			reason = "unknown label"
		default:
			if _, ok := tokenize.LookupWord(s.tokens, e.Start, e.End); !ok {
				reason = "does not match a word token"
			}
		}
		if reason != "" {
			s.issues = append(s.issues, Issue{Kind: IssueMalformedSpan, Entity: e, Reason: reason})
			s.logger.Warn("dropping stored entity", "kind", IssueMalformedSpan,
				"start", e.Start, "end", e.End, "label", e.Label.String(), "reason", reason)
			continue
		}
		kept = append(kept, e)
	}

	reg, dropped := registry.FromEntities(kept)
	for _, e := range dropped {
		s.issues = append(s.issues, Issue{Kind: IssueDuplicateSpan, Entity: e, Reason: "span labeled more than once"})
		s.logger.Warn("dropping stored entity", "kind", IssueDuplicateSpan,
			"start", e.Start, "end", e.End, "label", e.Label.String())
	}

	s.reg = reg
	s.baseline = reg.Clone()
	s.treated = got.IsTreated
}

// SelectToken marks the word token at [start,end) as the pending selection.
// It reports false, changing nothing, for whitespace or non-token spans.
func (s *Session) SelectToken(start, end int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.loaded {
		return false
	}
	tok, ok := tokenize.LookupWord(s.tokens, start, end)
	if !ok {
		return false
	}
	current := sentence.LabelNone
	if e, ok := s.reg.FindAt(start, end); ok {
		current = e.Label
	}
	s.selection = &PendingSelection{Start: tok.Start, End: tok.End, Text: tok.Text, Current: current}
	return true
}

// Selection returns the pending selection, if any.
func (s *Session) Selection() (PendingSelection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return PendingSelection{}, false
	}
	return *s.selection, true
}

// ClearSelection drops the pending selection without touching labels.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selection = nil
	s.mu.Unlock()
}

// Choose applies label to the pending selection and clears it.
// LabelNone removes the selection's entity.
func (s *Session) Choose(label sentence.Label) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return errors.NewInvalidRequest("no token selected")
	}
	sel := *s.selection
	if err := s.applyLocked(sel.Start, sel.End, label); err != nil {
		return err
	}
	s.selection = nil
	return nil
}

// ApplyLabel sets or, with LabelNone, removes the label on the word token
// at [start,end).
func (s *Session) ApplyLabel(start, end int, label sentence.Label) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(start, end, label)
}

func (s *Session) applyLocked(start, end int, label sentence.Label) error {
	if err := s.editableLocked("label"); err != nil {
		return err
	}
	if label != sentence.LabelNone && !label.Valid() {
		return errors.NewInvalidRequest("unknown label")
	}
	if _, ok := tokenize.LookupWord(s.tokens, start, end); !ok {
		return errors.NewMalformedSpan(start, end, "does not match a word token")
	}

	if label == sentence.LabelNone {
		s.reg.Remove(start, end)
	} else {
		s.reg.Upsert(start, end, label)
	}
	if s.state == StateSaving {
		s.journal = append(s.journal, edit{start: start, end: end, label: label})
	}
	if s.selection != nil && s.selection.Start == start && s.selection.End == end {
		s.selection.Current = label
	}
	return nil
}

// SetTreated sets the treated flag sent with the next commit.
func (s *Session) SetTreated(treated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked("treat"); err != nil {
		return err
	}
	s.treated = treated
	if s.state == StateSaving {
		s.journal = append(s.journal, edit{treated: &treated})
	}
	return nil
}

func (s *Session) editableLocked(op string) error {
	if s.closed {
		return errors.NewSessionClosed(s.id)
	}
	if !s.loaded || s.state == StateLoading {
		return errors.NewInvalidState(op, s.state.String())
	}
	return nil
}

// Commit sends the current entities and treated flag to the store.
// Allowed from Ready, or from Error once a sentence is loaded.
//
// On success the store's canonical sentence replaces local state and any
// edits made while the save was in flight are applied on top of it.
// On failure the session moves to Error and keeps local edits for a retry.
func (s *Session) Commit(ctx context.Context) (*sentence.Sentence, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.NewSessionClosed(s.id)
	}
	if s.state == StateSaving {
		s.mu.Unlock()
		return nil, errors.NewSaveInProgress(s.id)
	}
	if !s.loaded || (s.state != StateReady && s.state != StateError) {
		st := s.state
		s.mu.Unlock()
		return nil, errors.NewInvalidState("commit", st.String())
	}
	entities := s.reg.ToList()
	treated := s.treated
	patch := sentence.Patch{Entities: &entities, IsTreated: &treated}
	s.state = StateSaving
	s.journal = nil
	s.mu.Unlock()

	got, err := s.gw.Save(ctx, s.id, patch)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Debug("save completed after close, discarding")
		return nil, errors.NewSessionClosed(s.id)
	}
	pending := s.takeJournal()
	if err != nil {
		s.state = StateError
		s.err = errors.NewSaveFailed(s.id, err)
		s.logger.Warn("save failed", "error", err)
		return nil, s.err
	}

	s.install(got)
	for _, e := range pending {
		s.replay(e)
	}
	if s.selection != nil {
		if cur, ok := s.reg.FindAt(s.selection.Start, s.selection.End); ok {
			s.selection.Current = cur.Label
		} else {
			s.selection.Current = sentence.LabelNone
		}
	}
	s.state = StateReady
	s.err = nil
	s.logger.Debug("sentence saved", "entities", s.reg.Len(), "replayed", len(pending))
	return got.Clone(), nil
}

func (s *Session) takeJournal() []edit {
	j := s.journal
	s.journal = nil
	return j
}

func (s *Session) replay(e edit) {
	if e.treated != nil {
		s.treated = *e.treated
		return
	}
	if _, ok := tokenize.LookupWord(s.tokens, e.start, e.end); !ok {
		return
	}
	if e.label == sentence.LabelNone {
		s.reg.Remove(e.start, e.end)
	} else {
		s.reg.Upsert(e.start, e.end, e.label)
	}
}

// Close discards the session. Responses arriving afterwards are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.selection = nil
	s.journal = nil
	s.mu.Unlock()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that put the session into StateError, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Tokens returns a copy of the token view.
func (s *Session) Tokens() []tokenize.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tokenize.Token{}, s.tokens...)
}

// Entities returns the entities currently shown, in no particular order.
func (s *Session) Entities() []sentence.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.ToList()
}

// IsTreated returns the local treated flag.
func (s *Session) IsTreated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.treated
}

// Dirty reports whether local state differs from the last canonical sentence.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

func (s *Session) dirtyLocked() bool {
	if !s.loaded {
		return false
	}
	return !s.reg.Equal(s.baseline) || s.treated != s.canonical.IsTreated
}

// Issues returns the stored entities dropped on the last load or save.
func (s *Session) Issues() []Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Issue(nil), s.issues...)
}

// Sentence returns the canonical sentence overlaid with local edits.
// IsValid is the store's value as of the last load or commit. Nil before
// the first load.
func (s *Session) Sentence() *sentence.Sentence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentenceLocked()
}

func (s *Session) sentenceLocked() *sentence.Sentence {
	if !s.loaded {
		return nil
	}
	out := s.canonical.Clone()
	out.Entities = sentence.Canonicalize(s.reg.ToList())
	out.IsTreated = s.treated
	return out
}

// WouldBeValid reports whether the local entities satisfy the store's
// validity rule. The store may still override it.
func (s *Session) WouldBeValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded && sentence.HasBothLocations(s.reg.ToList())
}
