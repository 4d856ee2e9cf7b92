package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/sentence"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectColumns = `id, text, entities_json, is_valid, is_treated, created_at, updated_at`

// Insert stores a new sentence and sets s.ID to the assigned id.
// CreatedAt and UpdatedAt are set to now when zero.
func Insert(ctx context.Context, q Querier, s *sentence.Sentence) error {
	entitiesJSON, err := encodeEntities(s.Entities)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}

	query := `
		INSERT INTO sentences (text, entities_json, is_valid, is_treated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		s.Text, entitiesJSON, s.IsValid, s.IsTreated,
		s.CreatedAt.Unix(), s.UpdatedAt.Unix(),
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	s.ID = id
	return nil
}

// GetByID retrieves a sentence by id.
func GetByID(ctx context.Context, q Querier, id int64) (*sentence.Sentence, error) {
	query := `SELECT ` + selectColumns + ` FROM sentences WHERE id = ?`

	s, err := scanSentence(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// Update writes the mutable fields of an existing sentence (entities,
// is_valid, is_treated) and bumps updated_at. Text is never changed.
func Update(ctx context.Context, q Querier, s *sentence.Sentence) error {
	entitiesJSON, err := encodeEntities(s.Entities)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)

	query := `
		UPDATE sentences
		SET entities_json = ?, is_valid = ?, is_treated = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, query, entitiesJSON, s.IsValid, s.IsTreated, now.Unix(), s.ID)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(s.ID)
	}

	s.UpdatedAt = now
	return nil
}

// TreatAll marks every untreated sentence as treated and returns how
// many rows changed.
func TreatAll(ctx context.Context, q Querier) (int, error) {
	now := time.Now().UTC().Truncate(time.Second)
	result, err := q.ExecContext(ctx,
		`UPDATE sentences SET is_treated = 1, updated_at = ? WHERE is_treated = 0`, now.Unix())
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// Delete removes a sentence.
func Delete(ctx context.Context, q Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM sentences WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// Filter selects sentences for streaming and counting.
type Filter struct {
	TreatedOnly bool
	ValidOnly   bool
}

func (f Filter) where() string {
	clause := " WHERE 1=1"
	if f.TreatedOnly {
		clause += " AND is_treated = 1"
	}
	if f.ValidOnly {
		clause += " AND is_valid = 1"
	}
	return clause
}

// Stream returns rows of sentences matching f ordered by id.
// Callers must close the rows and decode with ScanSentenceFromRows.
func Stream(ctx context.Context, q Querier, f Filter) (*sql.Rows, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+selectColumns+` FROM sentences`+f.where()+` ORDER BY id ASC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// Count returns the number of sentences matching f.
func Count(ctx context.Context, q Querier, f Filter) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sentences`+f.where()).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSentence(row rowScanner) (*sentence.Sentence, error) {
	var (
		s            sentence.Sentence
		entitiesJSON string
		createdAt    int64
		updatedAt    int64
	)
	if err := row.Scan(&s.ID, &s.Text, &entitiesJSON, &s.IsValid, &s.IsTreated, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(entitiesJSON), &s.Entities); err != nil {
		return nil, fmt.Errorf("sentence %d: decode entities: %w", s.ID, err)
	}
	if s.Entities == nil {
		s.Entities = []sentence.Entity{}
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &s, nil
}

// ScanSentenceFromRows decodes the current row of a Stream result.
func ScanSentenceFromRows(rows *sql.Rows) (*sentence.Sentence, error) {
	return scanSentence(rows)
}

func encodeEntities(entities []sentence.Entity) (string, error) {
	if entities == nil {
		entities = []sentence.Entity{}
	}
	data, err := json.Marshal(entities)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}
