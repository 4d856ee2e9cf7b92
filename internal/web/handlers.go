package web

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/ops"
	"github.com/hpungsan/tagline/internal/sentence"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handlers contains HTTP route handlers for the sentence store.
type Handlers struct {
	db       *sql.DB
	renderer *Renderer
}

// createRequest is the POST /sentences body.
type createRequest struct {
	Text      string            `json:"text"`
	Entities  []sentence.Entity `json:"entities,omitempty"`
	IsTreated *bool             `json:"isTreated,omitempty"`
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// HandleCreate handles POST /sentences.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	s, err := ops.Create(r.Context(), h.db, ops.CreateInput{
		Text:      req.Text,
		Entities:  req.Entities,
		IsTreated: req.IsTreated,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, s)
}

// HandleGet handles GET /sentences/{id}. Browsers get an HTML review card.
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := ops.ParseID(r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	s, err := ops.Fetch(r.Context(), h.db, ops.FetchInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsHTML(r) {
		h.renderer.renderCard(w, r, s)
		return
	}
	renderJSON(w, http.StatusOK, s)
}

// HandleSave handles PUT and PATCH /sentences/{id}.
func (h *Handlers) HandleSave(w http.ResponseWriter, r *http.Request) {
	id, err := ops.ParseID(r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var patch sentence.Patch
	if err := decodeBody(w, r, &patch); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	s, err := ops.Save(r.Context(), h.db, ops.SaveInput{ID: id, Patch: patch})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, s)
}

// HandleDelete handles DELETE /sentences/{id}.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := ops.ParseID(r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := ops.Delete(r.Context(), h.db, ops.DeleteInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleTreat returns a handler for POST /sentences/{id}/treat and /untreat.
func (h *Handlers) HandleTreat(treated bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := ops.ParseID(r.PathValue("id"))
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}

		s, err := ops.SetTreated(r.Context(), h.db, id, treated)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, s)
	}
}

// HandleValidity handles POST /sentences/{id}/validate and /invalidate.
func (h *Handlers) HandleValidity(valid bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := ops.ParseID(r.PathValue("id"))
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}

		s, err := ops.SetValid(r.Context(), h.db, id, valid)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, s)
	}
}

// HandleTreatAll handles POST /sentences/treat-all.
func (h *Handlers) HandleTreatAll(w http.ResponseWriter, r *http.Request) {
	result, err := ops.TreatAll(r.Context(), h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleStats handles GET /sentences/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Stats(r.Context(), h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleRevalidate handles POST /sentences/revalidate.
func (h *Handlers) HandleRevalidate(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Revalidate(r.Context(), h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// decodeBody reads a single JSON object into v. Unknown fields are rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return errors.NewInvalidRequest("request body too large")
		case stderrors.Is(err, io.EOF):
			return errors.NewInvalidRequest("request body is required")
		default:
			return errors.NewInvalidRequest("invalid JSON body: " + err.Error())
		}
	}
	if dec.More() {
		return errors.NewInvalidRequest("request body must be a single JSON object")
	}
	return nil
}
