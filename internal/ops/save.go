package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/tagline/internal/db"
	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/sentence"
)

// SaveInput contains parameters for the Save operation.
type SaveInput struct {
	ID    int64
	Patch sentence.Patch
}

// Save applies a patch and returns the canonical sentence.
//
// Entities are validated against the stored text, deduplicated (the last
// entity for a span wins) and sorted. IsValid is recomputed whenever
// entities change. A patch with neither field set is rejected.
func Save(ctx context.Context, database *sql.DB, input SaveInput) (*sentence.Sentence, error) {
	if err := ValidateID(input.ID); err != nil {
		return nil, err
	}
	if input.Patch.Entities == nil && input.Patch.IsTreated == nil {
		return nil, errors.NewInvalidRequest("patch must set entities or isTreated")
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	s, err := db.GetByID(ctx, tx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Patch.Entities != nil {
		entities := *input.Patch.Entities
		if err := sentence.ValidateEntities(s.Text, entities); err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		s.Entities = sentence.Canonicalize(entities)
		s.IsValid = sentence.HasBothLocations(s.Entities)
	}
	if input.Patch.IsTreated != nil {
		s.IsTreated = *input.Patch.IsTreated
	}

	if err := db.Update(ctx, tx, s); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// SetTreated flips only the treated flag.
func SetTreated(ctx context.Context, database *sql.DB, id int64, treated bool) (*sentence.Sentence, error) {
	return Save(ctx, database, SaveInput{ID: id, Patch: sentence.Patch{IsTreated: &treated}})
}
