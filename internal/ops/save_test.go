package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/sentence"
)

func TestSave_ParisLyon(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	s := mustCreate(t, database, "Paris Lyon")

	got, err := Save(ctx, database, SaveInput{ID: s.ID, Patch: sentence.Patch{
		Entities:  entitiesPtr(arrLyon, depParis),
		IsTreated: boolPtr(true),
	}})
	require.NoError(t, err)
	assert.Equal(t, []sentence.Entity{depParis, arrLyon}, got.Entities)
	assert.True(t, got.IsValid)
	assert.True(t, got.IsTreated)

	fetched, err := Fetch(ctx, database, FetchInput{ID: s.ID})
	require.NoError(t, err)
	assert.Equal(t, got.Entities, fetched.Entities)
	assert.True(t, fetched.IsValid)

	got, err = Save(ctx, database, SaveInput{ID: s.ID, Patch: sentence.Patch{Entities: entitiesPtr(arrLyon)}})
	require.NoError(t, err)
	assert.False(t, got.IsValid)
	assert.True(t, got.IsTreated, "treated untouched when absent from patch")
}

func TestSave_DuplicateSpanLastWins(t *testing.T) {
	database := newTestDB(t)
	s := mustCreate(t, database, "Paris Lyon")

	got, err := Save(context.Background(), database, SaveInput{ID: s.ID, Patch: sentence.Patch{
		Entities: entitiesPtr(depParis, sentence.Entity{Start: 0, End: 5, Label: sentence.LabelArrival}),
	}})
	require.NoError(t, err)
	assert.Equal(t, []sentence.Entity{{Start: 0, End: 5, Label: sentence.LabelArrival}}, got.Entities)
}

func TestSave_TreatedOnlyKeepsEntities(t *testing.T) {
	database := newTestDB(t)
	s := mustCreate(t, database, "Paris Lyon", depParis, arrLyon)

	got, err := SetTreated(context.Background(), database, s.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsTreated)
	assert.True(t, got.IsValid)
	assert.Len(t, got.Entities, 2)
}

func TestSave_ClearAllEntities(t *testing.T) {
	database := newTestDB(t)
	s := mustCreate(t, database, "Paris Lyon", depParis, arrLyon)

	got, err := Save(context.Background(), database, SaveInput{ID: s.ID, Patch: sentence.Patch{Entities: entitiesPtr()}})
	require.NoError(t, err)
	assert.Empty(t, got.Entities)
	assert.False(t, got.IsValid)
}

func TestSave_Rejections(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	s := mustCreate(t, database, "Paris Lyon", depParis)

	_, err := Save(ctx, database, SaveInput{ID: s.ID})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "empty patch: %v", err)

	_, err = Save(ctx, database, SaveInput{ID: s.ID, Patch: sentence.Patch{
		Entities: entitiesPtr(sentence.Entity{Start: 6, End: 20, Label: sentence.LabelArrival}),
	}})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "out of range: %v", err)

	_, err = Save(ctx, database, SaveInput{ID: 404, Patch: sentence.Patch{IsTreated: boolPtr(true)}})
	assert.True(t, errors.Is(err, errors.ErrNotFound), "missing: %v", err)

	// Rejected saves leave the row untouched.
	got, err := Fetch(ctx, database, FetchInput{ID: s.ID})
	require.NoError(t, err)
	assert.Equal(t, []sentence.Entity{depParis}, got.Entities)
}
