package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/tagline/internal/annotate"
	"github.com/hpungsan/tagline/internal/config"
	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/ops"
	"github.com/hpungsan/tagline/internal/sentence"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	gw       annotate.Gateway
	sessions *annotate.Manager
}

// NewHandlers creates a new Handlers instance. Sessions and sentence_fetch
// go through gw; create and export use the local store.
func NewHandlers(db *sql.DB, cfg *config.Config, gw annotate.Gateway) *Handlers {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handlers{
		db:       db,
		cfg:      cfg,
		gw:       gw,
		sessions: annotate.NewManager(gw),
	}
}

// Request types for each tool

// SentenceFetchRequest represents the arguments for sentence_fetch.
type SentenceFetchRequest struct {
	ID int64 `json:"id"`
}

// SentenceCreateRequest represents the arguments for sentence_create.
type SentenceCreateRequest struct {
	Text      string            `json:"text"`
	Entities  []sentence.Entity `json:"entities,omitempty"`
	IsTreated *bool             `json:"is_treated,omitempty"`
}

// SentenceSetValidRequest represents the arguments for sentence_set_valid.
type SentenceSetValidRequest struct {
	ID    int64 `json:"id"`
	Valid *bool `json:"valid"`
}

// SentenceExportRequest represents the arguments for sentence_export.
type SentenceExportRequest struct {
	Path        string `json:"path,omitempty"`
	TreatedOnly bool   `json:"treated_only,omitempty"`
	ValidOnly   bool   `json:"valid_only,omitempty"`
}

// SessionOpenRequest represents the arguments for session_open.
type SessionOpenRequest struct {
	ID int64 `json:"id"`
}

// SessionRequest identifies an open session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// SessionSelectRequest represents the arguments for session_select.
type SessionSelectRequest struct {
	SessionID string `json:"session_id"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
}

// SessionLabelRequest represents the arguments for session_label.
type SessionLabelRequest struct {
	SessionID string `json:"session_id"`
	Label     string `json:"label"`
	Start     *int   `json:"start,omitempty"`
	End       *int   `json:"end,omitempty"`
}

// SessionTreatRequest represents the arguments for session_treat.
type SessionTreatRequest struct {
	SessionID string `json:"session_id"`
	Treated   *bool  `json:"treated"`
}

// SessionOutput is returned by session tools.
type SessionOutput struct {
	SessionID string        `json:"session_id"`
	View      annotate.View `json:"view"`
}

// CommitOutput is returned by session_commit.
type CommitOutput struct {
	SessionOutput
	Saved *sentence.Sentence `json:"saved"`
}

// HandleSentenceFetch handles the sentence_fetch tool call.
func (h *Handlers) HandleSentenceFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SentenceFetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := ops.ValidateID(input.ID); err != nil {
		return errorResult(err), nil
	}

	s, err := h.gw.Fetch(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(s)
}

// HandleSentenceCreate handles the sentence_create tool call.
func (h *Handlers) HandleSentenceCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SentenceCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := ops.Create(ctx, h.db, ops.CreateInput{
		Text:      input.Text,
		Entities:  input.Entities,
		IsTreated: input.IsTreated,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(s)
}

// HandleSentenceSetValid handles the sentence_set_valid tool call.
func (h *Handlers) HandleSentenceSetValid(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SentenceSetValidRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Valid == nil {
		return errorResult(errors.NewInvalidRequest("valid is required")), nil
	}

	s, err := ops.SetValid(ctx, h.db, input.ID, *input.Valid)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(s)
}

// HandleSentenceTreatAll handles the sentence_treat_all tool call.
func (h *Handlers) HandleSentenceTreatAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.TreatAll(ctx, h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSentenceStats handles the sentence_stats tool call.
func (h *Handlers) HandleSentenceStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Stats(ctx, h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSentenceExport handles the sentence_export tool call.
func (h *Handlers) HandleSentenceExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SentenceExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, ops.ExportInput{
		Path:        input.Path,
		TreatedOnly: input.TreatedOnly,
		ValidOnly:   input.ValidOnly,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSessionOpen handles the session_open tool call.
func (h *Handlers) HandleSessionOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionOpenRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := ops.ValidateID(input.ID); err != nil {
		return errorResult(err), nil
	}

	sessionID, s, err := h.sessions.Open(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(SessionOutput{SessionID: sessionID, View: s.View()})
}

// HandleSessionView handles the session_view tool call.
func (h *Handlers) HandleSessionView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := h.session(input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(SessionOutput{SessionID: input.SessionID, View: s.View()})
}

// HandleSessionSelect handles the session_select tool call.
func (h *Handlers) HandleSessionSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionSelectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := h.session(input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	if !s.SelectToken(input.Start, input.End) {
		return errorResult(errors.NewMalformedSpan(input.Start, input.End, "is not a word token")), nil
	}
	return successResult(SessionOutput{SessionID: input.SessionID, View: s.View()})
}

// HandleSessionLabel handles the session_label tool call.
func (h *Handlers) HandleSessionLabel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionLabelRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	label, err := sentence.ParseLabel(input.Label)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if (input.Start == nil) != (input.End == nil) {
		return errorResult(errors.NewInvalidRequest("start and end must be given together")), nil
	}

	s, err := h.session(input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}

	if input.Start != nil {
		err = s.ApplyLabel(*input.Start, *input.End, label)
	} else {
		err = s.Choose(label)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(SessionOutput{SessionID: input.SessionID, View: s.View()})
}

// HandleSessionTreat handles the session_treat tool call.
func (h *Handlers) HandleSessionTreat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionTreatRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Treated == nil {
		return errorResult(errors.NewInvalidRequest("treated is required")), nil
	}

	s, err := h.session(input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	if err := s.SetTreated(*input.Treated); err != nil {
		return errorResult(err), nil
	}
	return successResult(SessionOutput{SessionID: input.SessionID, View: s.View()})
}

// HandleSessionCommit handles the session_commit tool call.
func (h *Handlers) HandleSessionCommit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := h.session(input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	saved, err := s.Commit(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(CommitOutput{
		SessionOutput: SessionOutput{SessionID: input.SessionID, View: s.View()},
		Saved:         saved,
	})
}

// HandleSessionClose handles the session_close tool call.
func (h *Handlers) HandleSessionClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := h.sessions.Close(input.SessionID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"closed": true, "session_id": input.SessionID})
}

func (h *Handlers) session(sessionID string) (*annotate.Session, error) {
	if sessionID == "" {
		return nil, errors.NewInvalidRequest("session_id is required")
	}
	return h.sessions.Get(sessionID)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to prevent leaking file paths or SQL.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if tErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    tErr.Code,
			"message": tErr.Message,
			"status":  tErr.Status,
		}
		if tErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if tErr.Details != nil {
			errorObj["details"] = tErr.Details
		}
		if cause := errors.Cause(err); cause != "" && cause != tErr.Code {
			errorObj["cause"] = cause
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
