package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/tagline/internal/db"
	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/sentence"
)

// CreateInput contains parameters for the Create operation.
type CreateInput struct {
	Text      string            // required
	Entities  []sentence.Entity // optional, offsets into Text
	IsTreated *bool             // default: the computed validity
}

// Create stores a new sentence.
//
// Text without entities is normalized (trimmed, NFC). Text with entities
// must already be normalized, since normalizing would shift the offsets.
func Create(ctx context.Context, database *sql.DB, input CreateInput) (*sentence.Sentence, error) {
	s, err := prepareCreate(input)
	if err != nil {
		return nil, err
	}
	if err := db.Insert(ctx, database, s); err != nil {
		return nil, err
	}
	return s, nil
}

// prepareCreate validates input and builds the sentence to insert.
func prepareCreate(input CreateInput) (*sentence.Sentence, error) {
	text := input.Text
	if len(input.Entities) == 0 {
		text = sentence.NormalizeText(text)
	} else if !sentence.IsNormalized(text) {
		return nil, errors.NewInvalidRequest("text with entities must be trimmed and NFC-normalized")
	}
	if text == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}

	if err := sentence.ValidateEntities(text, input.Entities); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	entities := sentence.Canonicalize(input.Entities)
	valid := sentence.HasBothLocations(entities)

	treated := valid
	if input.IsTreated != nil {
		treated = *input.IsTreated
	}

	return &sentence.Sentence{
		Text:      text,
		Entities:  entities,
		IsValid:   valid,
		IsTreated: treated,
	}, nil
}
