package ops

import (
	"context"
	"database/sql"
	"math"

	"github.com/hpungsan/tagline/internal/db"
)

// StatsOutput summarizes annotation progress. Rates are percentages of
// Total rounded to two decimals, and zero for an empty store.
type StatsOutput struct {
	Total          int     `json:"total_sentences"`
	Valid          int     `json:"valid_sentences"`
	Treated        int     `json:"treated_sentences"`
	CompletionRate float64 `json:"completion_rate"`
	ValidationRate float64 `json:"validation_rate"`
}

// Stats counts sentences by state.
func Stats(ctx context.Context, database *sql.DB) (*StatsOutput, error) {
	total, err := db.Count(ctx, database, db.Filter{})
	if err != nil {
		return nil, err
	}
	valid, err := db.Count(ctx, database, db.Filter{ValidOnly: true})
	if err != nil {
		return nil, err
	}
	treated, err := db.Count(ctx, database, db.Filter{TreatedOnly: true})
	if err != nil {
		return nil, err
	}
	return &StatsOutput{
		Total:          total,
		Valid:          valid,
		Treated:        treated,
		CompletionRate: rate(treated, total),
		ValidationRate: rate(valid, total),
	}, nil
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)*10000/float64(total)) / 100
}
