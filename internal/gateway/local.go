// Package gateway provides the persistence back ends an editing session
// loads from and commits to.
package gateway

import (
	"context"
	"database/sql"

	"github.com/hpungsan/tagline/internal/annotate"
	"github.com/hpungsan/tagline/internal/ops"
	"github.com/hpungsan/tagline/internal/sentence"
)

// Local reads and writes the SQLite sentence store directly.
type Local struct {
	db *sql.DB
}

var _ annotate.Gateway = (*Local)(nil)

// NewLocal returns a gateway over an initialized database.
func NewLocal(db *sql.DB) *Local {
	return &Local{db: db}
}

// Fetch implements annotate.Gateway.
func (l *Local) Fetch(ctx context.Context, id int64) (*sentence.Sentence, error) {
	return ops.Fetch(ctx, l.db, ops.FetchInput{ID: id})
}

// Save implements annotate.Gateway.
func (l *Local) Save(ctx context.Context, id int64, patch sentence.Patch) (*sentence.Sentence, error) {
	return ops.Save(ctx, l.db, ops.SaveInput{ID: id, Patch: patch})
}
