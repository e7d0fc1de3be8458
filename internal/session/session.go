package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tabletalk/tabletalk/internal/dataset"
	"github.com/tabletalk/tabletalk/internal/query"
)

var ErrNotFound = errors.New("session not found")

// Session owns one user's uploaded datasets and the engine they are loaded
// into. All state dies with the session; there is no cross-session sharing.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	expiresAt time.Time
	engine    query.Engine
	datasets  []dataset.Summary
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// Datasets returns the loaded dataset summaries in upload order.
func (s *Session) Datasets() []dataset.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dataset.Summary, len(s.datasets))
	copy(out, s.datasets)
	return out
}

func (s *Session) Dataset(tableName string) (dataset.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, summary := range s.datasets {
		if summary.TableName == tableName {
			return summary, true
		}
	}
	return dataset.Summary{}, false
}

// AddDataset loads a dataset into the session's engine. Re-uploading the
// same source replaces the table; a different source normalizing to an
// existing table name is a conflict the caller must surface.
func (s *Session) AddDataset(ctx context.Context, ds dataset.Dataset) (dataset.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaceIndex := -1
	for i, existing := range s.datasets {
		if existing.TableName != ds.TableName {
			continue
		}
		if existing.SourceName != ds.SourceName {
			return dataset.Summary{}, fmt.Errorf("%w: %q and %q both normalize to table %q",
				dataset.ErrTableNameConflict, existing.SourceName, ds.SourceName, ds.TableName)
		}
		replaceIndex = i
		break
	}

	if err := s.engine.LoadDataset(ctx, ds); err != nil {
		return dataset.Summary{}, err
	}

	summary := ds.Summary()
	if replaceIndex >= 0 {
		s.datasets[replaceIndex] = summary
	} else {
		s.datasets = append(s.datasets, summary)
	}
	return summary, nil
}

func (s *Session) Execute(ctx context.Context, sqlText string, rowLimit int) (query.Result, error) {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	return engine.Execute(ctx, sqlText, rowLimit)
}

// Describe builds the query-scoped schema description for the session's
// datasets. It is rebuilt fresh on every call and never cached.
func (s *Session) Describe() (dataset.Description, error) {
	return dataset.Describe(s.Datasets())
}

func (s *Session) touch(ttl time.Duration, now time.Time) {
	s.mu.Lock()
	s.expiresAt = now.Add(ttl)
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.expiresAt)
}

func (s *Session) close() {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine != nil {
		_ = engine.Close()
	}
}
