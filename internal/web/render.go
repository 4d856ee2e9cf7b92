package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/logging"
	"github.com/hpungsan/tagline/internal/sentence"
)

// PageData contains the fields the page template uses.
type PageData struct {
	Title   string
	Version string
	Body    template.HTML
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} · Tagline</title>
</head>
<body>
<main>
{{.Body}}
</main>
<footer>tagline {{.Version}}</footer>
</body>
</html>
`

// markdown renders review cards. Tables list a sentence's entities.
var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Renderer turns sentences and errors into HTML or JSON responses.
type Renderer struct {
	page    *template.Template
	version string
}

// NewRenderer parses the page template.
func NewRenderer(version string) *Renderer {
	return &Renderer{
		page:    template.Must(template.New("page").Parse(pageTemplate)),
		version: version,
	}
}

// wantsHTML reports whether the client prefers an HTML response.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// renderCard writes the HTML review card for s.
func (rd *Renderer) renderCard(w http.ResponseWriter, r *http.Request, s *sentence.Sentence) {
	rd.renderPage(w, r, http.StatusOK, PageData{
		Title: fmt.Sprintf("Sentence %d", s.ID),
		Body:  renderMarkdown(sentence.Markdown(s)),
	})
}

// renderPage executes the page template into a buffer so a template
// failure can still produce a clean 500.
func (rd *Renderer) renderPage(w http.ResponseWriter, r *http.Request, status int, data PageData) {
	data.Version = rd.version

	var buf bytes.Buffer
	if err := rd.page.Execute(&buf, data); err != nil {
		logging.FromContext(r.Context()).Error("template execution error", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
// JSON is the default since the gateway is the main client.
func (rd *Renderer) renderError(w http.ResponseWriter, r *http.Request, err error) {
	tErr, ok := errors.As(err)
	if !ok {
		tErr = errors.NewInternal(err)
	}
	if tErr.Status >= 500 {
		logging.FromContext(r.Context()).Error("request failed", "error", err)
	}

	if wantsHTML(r) {
		rd.renderPage(w, r, tErr.Status, PageData{
			Title: fmt.Sprintf("Error %d", tErr.Status),
			Body:  template.HTML(`<p class="error-message">` + template.HTMLEscapeString(tErr.Message) + `</p>`),
		})
		return
	}

	renderJSON(w, tErr.Status, map[string]any{
		"error": map[string]any{
			"code":    string(tErr.Code),
			"message": tErr.Message,
			"status":  tErr.Status,
		},
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark.
// Raw HTML in the input is dropped by goldmark's default renderer.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(md) + "</pre>")
	}
	return template.HTML(buf.String())
}
