package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/tagline/internal/db"
	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/sentence"
)

// SetValid overrides the computed validity of one sentence. The override
// lasts until the entities are saved again or Revalidate runs.
func SetValid(ctx context.Context, database *sql.DB, id int64, valid bool) (*sentence.Sentence, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	s, err := db.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	s.IsValid = valid
	if err := db.Update(ctx, tx, s); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// TreatAllOutput contains the result of the TreatAll operation.
type TreatAllOutput struct {
	Count int `json:"count"`
}

// TreatAll marks every untreated sentence as treated.
func TreatAll(ctx context.Context, database *sql.DB) (*TreatAllOutput, error) {
	n, err := db.TreatAll(ctx, database)
	if err != nil {
		return nil, err
	}
	return &TreatAllOutput{Count: n}, nil
}
