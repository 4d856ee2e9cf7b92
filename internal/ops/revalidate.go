package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/tagline/internal/db"
	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/sentence"
)

// RevalidateOutput contains the result of the Revalidate operation.
type RevalidateOutput struct {
	Checked int     `json:"checked"`
	Changed int     `json:"changed"`
	IDs     []int64 `json:"ids"`
}

// Revalidate recomputes IsValid for every treated sentence and writes back
// the ones that changed.
func Revalidate(ctx context.Context, database *sql.DB) (*RevalidateOutput, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := db.Stream(ctx, tx, db.Filter{TreatedOnly: true})
	if err != nil {
		return nil, err
	}

	var (
		checked int
		stale   []*sentence.Sentence
	)
	for rows.Next() {
		if ctx.Err() != nil {
			rows.Close()
			return nil, errors.NewCancelled("revalidate")
		}
		s, err := db.ScanSentenceFromRows(rows)
		if err != nil {
			rows.Close()
			return nil, errors.NewInternal(err)
		}
		checked++
		if valid := sentence.HasBothLocations(s.Entities); valid != s.IsValid {
			s.IsValid = valid
			stale = append(stale, s)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.NewInternal(err)
	}
	rows.Close()

	out := &RevalidateOutput{Checked: checked, IDs: []int64{}}
	for _, s := range stale {
		if err := db.Update(ctx, tx, s); err != nil {
			return nil, err
		}
		out.IDs = append(out.IDs, s.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	out.Changed = len(out.IDs)
	return out, nil
}
