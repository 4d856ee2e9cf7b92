package ops

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tagline/internal/db"
	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/sentence"
)

// TestFullWorkflow exercises the complete sentence lifecycle:
// create → fetch → save → revalidate → export → import → delete → fetch (not found)
func TestFullWorkflow(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	require.NoError(t, err)
	defer database.Close()

	ctx := context.Background()
	cfg := exportConfig(tmpDir)

	// 1. Create
	created, err := Create(ctx, database, CreateInput{Text: "Je vais de Paris à Lyon"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.False(t, created.IsValid)
	id := created.ID

	// 2. Fetch
	got, err := Fetch(ctx, database, FetchInput{ID: id})
	require.NoError(t, err)
	require.Equal(t, "Je vais de Paris à Lyon", got.Text)
	require.Empty(t, got.Entities)

	// 3. Save entities, then mark treated
	dep := sentence.Entity{Start: 11, End: 16, Label: sentence.LabelDeparture}
	arr := sentence.Entity{Start: 19, End: 23, Label: sentence.LabelArrival}
	saved, err := Save(ctx, database, SaveInput{ID: id, Patch: sentence.Patch{Entities: entitiesPtr(arr, dep)}})
	require.NoError(t, err)
	require.True(t, saved.IsValid)
	require.Equal(t, []sentence.Entity{dep, arr}, saved.Entities)
	require.Equal(t, "Paris", sentence.Slice(saved.Text, dep.Start, dep.End))
	require.Equal(t, "Lyon", sentence.Slice(saved.Text, arr.Start, arr.End))

	treated, err := SetTreated(ctx, database, id, true)
	require.NoError(t, err)
	require.True(t, treated.IsTreated)
	require.True(t, treated.IsValid)

	// 4. Revalidate finds nothing to fix
	rev, err := Revalidate(ctx, database)
	require.NoError(t, err)
	require.Equal(t, 1, rev.Checked)
	require.Equal(t, 0, rev.Changed)

	// 5. Export treated and valid sentences
	path := filepath.Join(tmpDir, "train.jsonl")
	exp, err := Export(ctx, database, cfg, ExportInput{Path: path, TreatedOnly: true, ValidOnly: true})
	require.NoError(t, err)
	require.Equal(t, 1, exp.Count)

	// 6. Import into a second store
	other := newTestDB(t)
	imp, err := Import(ctx, other, cfg, ImportInput{Path: path})
	require.NoError(t, err)
	require.Equal(t, 1, imp.Imported)

	copied, err := Fetch(ctx, other, FetchInput{ID: imp.IDs[0]})
	require.NoError(t, err)
	require.Equal(t, saved.Text, copied.Text)
	require.Equal(t, saved.Entities, copied.Entities)
	require.True(t, copied.IsValid)

	// 7. Delete
	del, err := Delete(ctx, database, DeleteInput{ID: id})
	require.NoError(t, err)
	require.True(t, del.Deleted)

	// 8. Fetch after delete
	_, err = Fetch(ctx, database, FetchInput{ID: id})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}
