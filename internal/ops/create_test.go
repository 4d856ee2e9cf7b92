package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/sentence"
)

func TestCreate_TextOnly(t *testing.T) {
	database := newTestDB(t)

	s, err := Create(context.Background(), database, CreateInput{Text: "  Paris Lyon \n"})
	require.NoError(t, err)
	assert.NotZero(t, s.ID)
	assert.Equal(t, "Paris Lyon", s.Text)
	assert.Empty(t, s.Entities)
	assert.NotNil(t, s.Entities)
	assert.False(t, s.IsValid)
	assert.False(t, s.IsTreated, "treated defaults to validity")
}

func TestCreate_WithEntitiesComputesValidity(t *testing.T) {
	database := newTestDB(t)

	s, err := Create(context.Background(), database, CreateInput{
		Text:     "Paris Lyon",
		Entities: []sentence.Entity{arrLyon, depParis},
	})
	require.NoError(t, err)
	assert.True(t, s.IsValid)
	assert.True(t, s.IsTreated, "treated defaults to validity")
	assert.Equal(t, []sentence.Entity{depParis, arrLyon}, s.Entities)
}

func TestCreate_ExplicitTreated(t *testing.T) {
	database := newTestDB(t)

	s, err := Create(context.Background(), database, CreateInput{
		Text:      "Paris Lyon",
		Entities:  []sentence.Entity{depParis, arrLyon},
		IsTreated: boolPtr(false),
	})
	require.NoError(t, err)
	assert.True(t, s.IsValid)
	assert.False(t, s.IsTreated)
}

func TestCreate_Rejections(t *testing.T) {
	database := newTestDB(t)

	tests := []struct {
		name  string
		input CreateInput
	}{
		{"empty text", CreateInput{Text: "   "}},
		{"span out of range", CreateInput{Text: "Paris Lyon", Entities: []sentence.Entity{{Start: 6, End: 11, Label: sentence.LabelArrival}}}},
		{"empty span", CreateInput{Text: "Paris Lyon", Entities: []sentence.Entity{{Start: 3, End: 3, Label: sentence.LabelArrival}}}},
		{"no label", CreateInput{Text: "Paris Lyon", Entities: []sentence.Entity{{Start: 0, End: 5}}}},
		{"untrimmed text with entities", CreateInput{Text: " Paris Lyon", Entities: []sentence.Entity{depParis}}},
		{"decomposed text with entities", CreateInput{Text: "Orle\u0301ans", Entities: []sentence.Entity{{Start: 0, End: 8, Label: sentence.LabelArrival}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(context.Background(), database, tt.input)
			assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestCreate_NormalizesDecomposedText(t *testing.T) {
	database := newTestDB(t)

	s, err := Create(context.Background(), database, CreateInput{Text: "Orle\u0301ans"})
	require.NoError(t, err)
	assert.Equal(t, "Orléans", s.Text)
	assert.Equal(t, 7, sentence.Len(s.Text))
}
