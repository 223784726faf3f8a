// Package store keeps local scrape state: a rendered-page cache and a log
// of pipeline runs.
package store

import (
	"context"
	"time"

	"github.com/sells-group/childcare-cli/internal/model"
)

// RunCounts are the tallies written when a run finishes.
type RunCounts struct {
	Total     int
	Skipped   int
	Succeeded int
	Failed    int
}

// Store defines the local persistence used by the scrape command.
type Store interface {
	// Page cache
	GetCachedPage(ctx context.Context, url string) (string, bool, error)
	SetCachedPage(ctx context.Context, url, html string, ttl time.Duration) error
	DeleteExpiredPages(ctx context.Context) (int, error)

	// Runs
	StartRun(ctx context.Context, linksFile, output string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, counts RunCounts, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
