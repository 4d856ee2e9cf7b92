package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tagline/internal/annotate"
	"github.com/hpungsan/tagline/internal/config"
	"github.com/hpungsan/tagline/internal/db"
	"github.com/hpungsan/tagline/internal/ops"
	"github.com/hpungsan/tagline/internal/sentence"
	"github.com/hpungsan/tagline/internal/web"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

// testConfig returns a config that lets import/export use temp dirs.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true
	return cfg
}

// runCLI runs the app with stdin and returns stdout.
func runCLI(t *testing.T, database *sql.DB, cfg *config.Config, stdin string, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(database, cfg)
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"tagline"}, args...))
	return out.String(), err
}

func seed(t *testing.T, database *sql.DB, text string) int64 {
	t.Helper()
	s, err := ops.Create(context.Background(), database, ops.CreateInput{Text: text})
	require.NoError(t, err)
	return s.ID
}

func idArg(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestParseSpanAndAssignment(t *testing.T) {
	start, end, err := parseSpan("6:10")
	require.NoError(t, err)
	assert.Equal(t, 6, start)
	assert.Equal(t, 10, end)

	e, err := parseAssignment("0:5=departure")
	require.NoError(t, err)
	assert.Equal(t, sentence.Entity{Start: 0, End: 5, Label: sentence.LabelDeparture}, e)

	for _, bad := range []string{"0-5=ARRIVAL", "0:5", "a:5=ARRIVAL", "0:5=CITY", "0:5=none"} {
		_, err := parseAssignment(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsCLIMode(t *testing.T) {
	assert.False(t, isCLIMode([]string{"tagline"}))
	assert.True(t, isCLIMode([]string{"tagline", "annotate", "3"}))
	assert.True(t, isCLIMode([]string{"tagline", "--backend", "http://x", "fetch", "1"}))
	assert.False(t, isCLIMode([]string{"tagline", "bogus"}))
}

func TestCLIAdd(t *testing.T) {
	database := setupTestDB(t)

	out, err := runCLI(t, database, testConfig(), "", "add", "--entity", "0:5=DEPARTURE", "--entity", "6:10=ARRIVAL", "Paris", "Lyon")
	require.NoError(t, err, out)

	var s sentence.Sentence
	require.NoError(t, json.Unmarshal([]byte(out), &s), out)
	assert.Equal(t, "Paris Lyon", s.Text)
	assert.True(t, s.IsValid)
	assert.True(t, s.IsTreated)
}

func TestCLIAdd_FromStdin(t *testing.T) {
	database := setupTestDB(t)

	out, err := runCLI(t, database, testConfig(), "  Je pars de Nice\n", "add", "--treated=false")
	require.NoError(t, err, out)

	var s sentence.Sentence
	require.NoError(t, json.Unmarshal([]byte(out), &s), out)
	assert.Equal(t, "Je pars de Nice", s.Text)
	assert.False(t, s.IsTreated)
}

func TestCLIFetchAndShow(t *testing.T) {
	database := setupTestDB(t)
	id := seed(t, database, "Paris Lyon")

	out, err := runCLI(t, database, testConfig(), "", "fetch", idArg(id))
	require.NoError(t, err)
	assert.Contains(t, out, `"text": "Paris Lyon"`)

	out, err = runCLI(t, database, testConfig(), "", "show", idArg(id))
	require.NoError(t, err)
	assert.Contains(t, out, "### Sentence "+idArg(id))
	assert.Contains(t, out, "_No entities_")

	_, err = runCLI(t, database, testConfig(), "", "fetch", "999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestCLILabel(t *testing.T) {
	database := setupTestDB(t)
	id := seed(t, database, "Paris Lyon")

	out, err := runCLI(t, database, testConfig(), "", "label", "--set", "0:5=DEPARTURE", "--set", "6:10=ARRIVAL", "--treated", idArg(id))
	require.NoError(t, err, out)

	var view annotate.View
	require.NoError(t, json.Unmarshal([]byte(out), &view), out)
	assert.True(t, view.IsValid)
	assert.True(t, view.IsTreated)
	assert.False(t, view.Dirty)

	stored, err := ops.Fetch(context.Background(), database, ops.FetchInput{ID: id})
	require.NoError(t, err)
	assert.Len(t, stored.Entities, 2)
	assert.True(t, stored.IsTreated)

	_, err = runCLI(t, database, testConfig(), "", "label", "--clear", "6:10", idArg(id))
	require.NoError(t, err)
	stored, err = ops.Fetch(context.Background(), database, ops.FetchInput{ID: id})
	require.NoError(t, err)
	assert.Equal(t, []sentence.Entity{{Start: 0, End: 5, Label: sentence.LabelDeparture}}, stored.Entities)
	assert.False(t, stored.IsValid)
}

func TestCLILabel_Errors(t *testing.T) {
	database := setupTestDB(t)
	id := seed(t, database, "Paris Lyon")

	_, err := runCLI(t, database, testConfig(), "", "label", idArg(id))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to do")

	_, err = runCLI(t, database, testConfig(), "", "label", "--set", "0:3=ARRIVAL", idArg(id))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MALFORMED_SPAN")

	stored, err := ops.Fetch(context.Background(), database, ops.FetchInput{ID: id})
	require.NoError(t, err)
	assert.Empty(t, stored.Entities, "a failed label run must not save")
}

func TestCLIAnnotate(t *testing.T) {
	database := setupTestDB(t)
	id := seed(t, database, "Je vais de Paris à Lyon")

	script := strings.Join([]string{
		"show",
		"4 departure",
		"6",
		"arrival",
		"treat on",
		"9 arrival",
		"save",
		"quit",
	}, "\n") + "\n"

	out, err := runCLI(t, database, testConfig(), script, "annotate", idArg(id))
	require.NoError(t, err, out)
	assert.Contains(t, out, "Paris → DEPARTURE")
	assert.Contains(t, out, `selected "Lyon" (currently none)`)
	assert.Contains(t, out, "Lyon → ARRIVAL")
	assert.Contains(t, out, "word number must be between 1 and 6")
	assert.Contains(t, out, "saved: 2 entities, valid: yes, treated: yes")
	assert.NotContains(t, out, "discarding")

	stored, err := ops.Fetch(context.Background(), database, ops.FetchInput{ID: id})
	require.NoError(t, err)
	assert.Equal(t, []sentence.Entity{
		{Start: 11, End: 16, Label: sentence.LabelDeparture},
		{Start: 19, End: 23, Label: sentence.LabelArrival},
	}, stored.Entities)
	assert.True(t, stored.IsTreated)
}

func TestCLIAnnotate_DiscardsOnEOF(t *testing.T) {
	database := setupTestDB(t)
	id := seed(t, database, "Paris Lyon")

	out, err := runCLI(t, database, testConfig(), "1 departure\n", "annotate", idArg(id))
	require.NoError(t, err)
	assert.Contains(t, out, "discarding unsaved changes")

	stored, err := ops.Fetch(context.Background(), database, ops.FetchInput{ID: id})
	require.NoError(t, err)
	assert.Empty(t, stored.Entities)
}

func TestCLIDeleteAndRevalidate(t *testing.T) {
	database := setupTestDB(t)
	id := seed(t, database, "Paris Lyon")

	out, err := runCLI(t, database, testConfig(), "", "revalidate")
	require.NoError(t, err)
	assert.Contains(t, out, `"checked": 0`)

	out, err = runCLI(t, database, testConfig(), "", "delete", idArg(id))
	require.NoError(t, err)
	assert.Contains(t, out, `"deleted": true`)

	_, err = runCLI(t, database, testConfig(), "", "delete", idArg(id))
	require.Error(t, err)
}

func TestCLIValidityTreatAllAndStats(t *testing.T) {
	database := setupTestDB(t)
	id := seed(t, database, "Paris Lyon")
	seed(t, database, "Lille Metz")

	out, err := runCLI(t, database, testConfig(), "", "validate", idArg(id))
	require.NoError(t, err, out)
	var s sentence.Sentence
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.True(t, s.IsValid)

	out, err = runCLI(t, database, testConfig(), "", "invalidate", idArg(id))
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.False(t, s.IsValid)

	out, err = runCLI(t, database, testConfig(), "", "treat-all")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"count": 2`)

	out, err = runCLI(t, database, testConfig(), "", "stats")
	require.NoError(t, err, out)
	var stats ops.StatsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, ops.StatsOutput{Total: 2, Treated: 2, CompletionRate: 100}, stats)

	_, err = runCLI(t, database, testConfig(), "", "validate", "abc")
	require.Error(t, err)
}

func TestCLIExportImport(t *testing.T) {
	database := setupTestDB(t)
	cfg := testConfig()
	_, err := ops.Create(context.Background(), database, ops.CreateInput{
		Text: "Paris Lyon",
		Entities: []sentence.Entity{
			{Start: 0, End: 5, Label: sentence.LabelDeparture},
			{Start: 6, End: 10, Label: sentence.LabelArrival},
		},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "train.jsonl")
	out, err := runCLI(t, database, cfg, "", "export", "--path", path, "--valid-only")
	require.NoError(t, err, out)

	var exp ops.ExportOutput
	require.NoError(t, json.Unmarshal([]byte(out), &exp))
	assert.Equal(t, 1, exp.Count)

	other := setupTestDB(t)
	out, err = runCLI(t, other, cfg, "", "import", "--mode", "skip", path)
	require.NoError(t, err, out)

	var imp ops.ImportOutput
	require.NoError(t, json.Unmarshal([]byte(out), &imp))
	assert.Equal(t, 1, imp.Imported)
}

func TestCLIBackend(t *testing.T) {
	remote := setupTestDB(t)
	id := seed(t, remote, "Paris Lyon")
	srv := httptest.NewServer(web.NewHandler(remote, config.DefaultConfig(), "test"))
	defer srv.Close()

	// The local database is empty; everything goes to the backend.
	local := setupTestDB(t)
	out, err := runCLI(t, local, testConfig(), "", "--backend", srv.URL, "label", "--set", "0:5=DEPARTURE", idArg(id))
	require.NoError(t, err, out)

	stored, err := ops.Fetch(context.Background(), remote, ops.FetchInput{ID: id})
	require.NoError(t, err)
	assert.Len(t, stored.Entities, 1)

	out, err = runCLI(t, local, testConfig(), "", "--backend", srv.URL, "fetch", idArg(id))
	require.NoError(t, err)
	assert.Contains(t, out, `"label": "DEPARTURE"`)
}
