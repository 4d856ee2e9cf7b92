package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/tagline/internal/errors"
)

func TestDelete(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	s := mustCreate(t, database, "Paris Lyon")

	out, err := Delete(ctx, database, DeleteInput{ID: s.ID})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !out.Deleted || out.ID != s.ID {
		t.Errorf("Delete output = %+v", out)
	}

	if _, err := Fetch(ctx, database, FetchInput{ID: s.ID}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Fetch after Delete = %v, want ErrNotFound", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	database := newTestDB(t)

	_, err := Delete(context.Background(), database, DeleteInput{ID: 12})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Delete should return ErrNotFound, got: %v", err)
	}
}
