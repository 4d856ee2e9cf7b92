package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/tagline/internal/db"
	"github.com/hpungsan/tagline/internal/sentence"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID int64
}

// Fetch retrieves a sentence by id.
func Fetch(ctx context.Context, database *sql.DB, input FetchInput) (*sentence.Sentence, error) {
	if err := ValidateID(input.ID); err != nil {
		return nil, err
	}
	return db.GetByID(ctx, database, input.ID)
}
