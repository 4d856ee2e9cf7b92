package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tagline/internal/db"
	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/sentence"
)

func writeImportFile(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "in.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))
	return path
}

func countSentences(t *testing.T, database db.Querier) int {
	t.Helper()
	n, err := db.Count(context.Background(), database, db.Filter{})
	require.NoError(t, err)
	return n
}

func TestImport_BothEntityForms(t *testing.T) {
	database := newTestDB(t)
	dir := t.TempDir()
	path := writeImportFile(t, dir,
		`{"_tagline_export":true,"schema_version":"1.0","exported_at":1}`,
		`{"id":17,"text":"Paris Lyon","entities":[[0,5,"DEPARTURE"],[6,10,"ARRIVAL"]]}`,
		`{"text":"Je pars de Nice","entities":[{"start":11,"end":15,"label":"DEPARTURE"}],"isTreated":true}`,
		``,
		`{"text":"Lille Metz"}`,
	)

	out, err := Import(context.Background(), database, exportConfig(dir), ImportInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Imported)
	assert.Equal(t, 0, out.Skipped)
	assert.Empty(t, out.Errors)
	require.Len(t, out.IDs, 3)

	first, err := Fetch(context.Background(), database, FetchInput{ID: out.IDs[0]})
	require.NoError(t, err)
	assert.True(t, first.IsValid)
	assert.True(t, first.IsTreated)

	second, err := Fetch(context.Background(), database, FetchInput{ID: out.IDs[1]})
	require.NoError(t, err)
	assert.False(t, second.IsValid)
	assert.True(t, second.IsTreated)
	assert.Equal(t, []sentence.Entity{{Start: 11, End: 15, Label: sentence.LabelDeparture}}, second.Entities)
}

func TestImport_ModeErrorIsAtomic(t *testing.T) {
	database := newTestDB(t)
	dir := t.TempDir()
	path := writeImportFile(t, dir,
		`{"text":"Paris Lyon"}`,
		`{"text":"Paris Lyon","entities":[[6,11,"ARRIVAL"]]}`,
		`not json`,
	)

	out, err := Import(context.Background(), database, exportConfig(dir), ImportInput{Path: path, Mode: ImportModeError})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Imported)
	assert.Equal(t, 3, out.Skipped)
	require.Len(t, out.Errors, 2)
	assert.Equal(t, 2, out.Errors[0].Line)
	assert.Equal(t, "INVALID_RECORD", out.Errors[0].Code)
	assert.Equal(t, 3, out.Errors[1].Line)
	assert.Equal(t, "PARSE_ERROR", out.Errors[1].Code)

	assert.Equal(t, 0, countSentences(t, database))
}

func TestImport_ModeSkip(t *testing.T) {
	database := newTestDB(t)
	dir := t.TempDir()
	path := writeImportFile(t, dir,
		`{"text":"Paris Lyon","entities":[[0,5,"DEPARTURE"]]}`,
		`{"text":"","entities":[]}`,
		`{"text":"Paris Lyon","entities":[[0,5,"CITY"]]}`,
		`{"text":"Lille Metz"}`,
	)

	out, err := Import(context.Background(), database, exportConfig(dir), ImportInput{Path: path, Mode: ImportModeSkip})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Imported)
	assert.Equal(t, 2, out.Skipped)
	require.Len(t, out.Errors, 2)
	assert.Equal(t, 2, out.Errors[0].Line)
	assert.Equal(t, 3, out.Errors[1].Line)
	assert.Equal(t, 2, countSentences(t, database))
}

func TestImport_InvalidMode(t *testing.T) {
	database := newTestDB(t)
	dir := t.TempDir()
	path := writeImportFile(t, dir, `{"text":"Paris Lyon"}`)

	_, err := Import(context.Background(), database, exportConfig(dir), ImportInput{Path: path, Mode: "replace"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestImport_FileNotFound(t *testing.T) {
	database := newTestDB(t)
	dir := t.TempDir()

	_, err := Import(context.Background(), database, exportConfig(dir), ImportInput{Path: filepath.Join(dir, "missing.jsonl")})
	assert.True(t, errors.Is(err, errors.ErrFileNotFound), "got %v", err)
}

func TestImport_RoundTripsExport(t *testing.T) {
	src := newTestDB(t)
	dst := newTestDB(t)
	ctx := context.Background()
	dir := t.TempDir()
	cfg := exportConfig(dir)

	mustCreate(t, src, "Paris Lyon", depParis, arrLyon)
	mustCreate(t, src, "Je vais à Orléans", sentence.Entity{Start: 10, End: 17, Label: sentence.LabelArrival})

	exp, err := Export(ctx, src, cfg, ExportInput{Path: filepath.Join(dir, "rt.jsonl")})
	require.NoError(t, err)

	out, err := Import(ctx, dst, cfg, ImportInput{Path: exp.Path})
	require.NoError(t, err)
	require.Equal(t, 2, out.Imported)

	got, err := Fetch(ctx, dst, FetchInput{ID: out.IDs[1]})
	require.NoError(t, err)
	assert.Equal(t, "Je vais à Orléans", got.Text)
	assert.Equal(t, "Orléans", sentence.Slice(got.Text, 10, 17))
	assert.Equal(t, []sentence.Entity{{Start: 10, End: 17, Label: sentence.LabelArrival}}, got.Entities)
}
