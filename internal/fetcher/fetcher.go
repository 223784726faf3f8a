// Package fetcher loads provider pages and reads tabular ledger files.
package fetcher

import (
	"context"
)

// PageFetcher returns the rendered HTML of one page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Func adapts a function to PageFetcher.
type Func func(ctx context.Context, url string) (string, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, url string) (string, error) { return f(ctx, url) }
