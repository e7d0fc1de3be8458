package query

import (
	"context"
	"strings"
	"time"

	"github.com/tabletalk/tabletalk/internal/dataset"
)

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Engine is one session's relational workspace. Implementations own an
// ephemeral store that is discarded on Close; nothing persists.
type Engine interface {
	LoadDataset(ctx context.Context, ds dataset.Dataset) error
	Execute(ctx context.Context, sqlText string, rowLimit int) (Result, error)
	Close() error
}

// Factory creates a fresh Engine for a new session.
type Factory func() (Engine, error)

// IsReadOnly reports whether a statement is a plain read (SELECT or WITH
// prefix). Row limits are only ever wrapped around read queries.
func IsReadOnly(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	return strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with")
}
