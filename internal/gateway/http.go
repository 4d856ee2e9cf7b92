package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/tagline/internal/annotate"
	"github.com/hpungsan/tagline/internal/config"
	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/logging"
	"github.com/hpungsan/tagline/internal/sentence"
)

// maxResponseBody caps how much of a response is read.
const maxResponseBody = 4 << 20

// HTTP talks to a remote sentence store over its REST API.
type HTTP struct {
	base   string
	token  string
	client *http.Client
}

var _ annotate.Gateway = (*HTTP)(nil)

// NewHTTP builds a client for baseURL. The bearer token and request
// timeout come from cfg.
func NewHTTP(baseURL string, cfg *config.Config) (*HTTP, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("backend URL must be an absolute http(s) URL: %q", baseURL))
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &HTTP{
		base:   strings.TrimRight(u.String(), "/"),
		token:  cfg.BackendToken,
		client: &http.Client{Timeout: cfg.RequestTimeout()},
	}, nil
}

// Fetch implements annotate.Gateway with GET /sentences/{id}.
func (h *HTTP) Fetch(ctx context.Context, id int64) (*sentence.Sentence, error) {
	return h.do(ctx, http.MethodGet, id, nil)
}

// Save implements annotate.Gateway with PUT /sentences/{id}.
func (h *HTTP) Save(ctx context.Context, id int64, patch sentence.Patch) (*sentence.Sentence, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return h.do(ctx, http.MethodPut, id, body)
}

func (h *HTTP) do(ctx context.Context, method string, id int64, body []byte) (*sentence.Sentence, error) {
	endpoint := h.base + "/sentences/" + strconv.FormatInt(id, 10)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	requestID := logging.GetRequestID(ctx)
	if requestID == "" {
		requestID = logging.NewRequestID()
	}
	req.Header.Set(logging.RequestIDHeader, requestID)

	log := logging.FromContext(ctx).With("method", method, "url", endpoint, "request_id", requestID)
	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled(strings.ToLower(method) + " sentence")
		}
		log.Warn("backend request failed", "error", err)
		return nil, errors.NewInternal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	log.Debug("backend response", "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp.StatusCode, id, raw)
	}

	s, err := decodeSentence(raw)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("decode sentence %d: %w", id, err))
	}
	return s, nil
}

// wireSentence is a sentence as any compatible store encodes it.
// Timestamps are kept as strings and parsed by parseTimestamp.
type wireSentence struct {
	ID        int64             `json:"id"`
	Text      string            `json:"text"`
	Entities  []sentence.Entity `json:"entities"`
	IsValid   bool              `json:"isValid"`
	IsTreated bool              `json:"isTreated"`
	CreatedAt string            `json:"createdAt"`
	UpdatedAt string            `json:"updatedAt"`
}

func decodeSentence(raw []byte) (*sentence.Sentence, error) {
	var w wireSentence
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	created, err := parseTimestamp(w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("createdAt: %w", err)
	}
	updated, err := parseTimestamp(w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("updatedAt: %w", err)
	}
	if w.Entities == nil {
		w.Entities = []sentence.Entity{}
	}
	return &sentence.Sentence{
		ID:        w.ID,
		Text:      w.Text,
		Entities:  w.Entities,
		IsValid:   w.IsValid,
		IsTreated: w.IsTreated,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

// naiveLayouts are ISO 8601 forms without a zone offset, as written by
// Python's datetime.isoformat on naive UTC values.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp accepts RFC 3339 and zone-less ISO 8601 timestamps.
// Zone-less values are read as UTC. An empty string is the zero time.
func parseTimestamp(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

// errorBody is the envelope the web server writes for failures.
// Message is the flat form some stores use for auth failures.
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// decodeError turns a non-2xx response into a TaglineError. A 404 is
// always NOT_FOUND; other statuses keep the server's code and message
// when the body carries them.
func decodeError(status int, id int64, raw []byte) error {
	if status == http.StatusNotFound {
		return errors.NewNotFound(id)
	}

	detail := errorDetail{Status: status}
	var env errorBody
	if err := json.Unmarshal(raw, &env); err == nil {
		if len(env.Error) > 0 {
			if err := json.Unmarshal(env.Error, &detail); err != nil {
				var msg string
				if json.Unmarshal(env.Error, &msg) == nil {
					detail.Message = msg
				}
			}
		}
		if detail.Message == "" {
			detail.Message = env.Message
		}
	}
	if detail.Message == "" {
		detail.Message = strings.TrimSpace(string(raw))
	}
	if detail.Message == "" {
		detail.Message = http.StatusText(status)
	}
	if detail.Code == "" {
		detail.Code = string(codeForStatus(status))
	}

	return &errors.TaglineError{
		Code:    errors.ErrorCode(detail.Code),
		Status:  status,
		Message: detail.Message,
		Details: map[string]any{"id": id, "upstream_status": status},
	}
}

func codeForStatus(status int) errors.ErrorCode {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.ErrUnauthorized
	case status == http.StatusUnprocessableEntity:
		return errors.ErrMalformedSpan
	case status >= 400 && status < 500:
		return errors.ErrInvalidRequest
	default:
		return errors.ErrInternal
	}
}
