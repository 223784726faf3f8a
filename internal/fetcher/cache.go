package fetcher

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PageCache stores rendered pages by URL.
type PageCache interface {
	GetCachedPage(ctx context.Context, url string) (string, bool, error)
	SetCachedPage(ctx context.Context, url, html string, ttl time.Duration) error
}

// CachingFetcher serves pages from a PageCache and fills it on a miss.
// Cache failures are logged and never fail the fetch.
type CachingFetcher struct {
	next  PageFetcher
	cache PageCache
	ttl   time.Duration
}

var _ PageFetcher = (*CachingFetcher)(nil)

// NewCachingFetcher wraps next with cache.
func NewCachingFetcher(next PageFetcher, cache PageCache, ttl time.Duration) *CachingFetcher {
	return &CachingFetcher{next: next, cache: cache, ttl: ttl}
}

// Fetch returns the cached page for url or fetches and caches it.
func (c *CachingFetcher) Fetch(ctx context.Context, url string) (string, error) {
	html, ok, err := c.cache.GetCachedPage(ctx, url)
	if err != nil {
		zap.L().Warn("page cache read failed", zap.String("url", url), zap.Error(err))
	}
	if ok {
		return html, nil
	}

	html, err = c.next.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	if err := c.cache.SetCachedPage(ctx, url, html, c.ttl); err != nil {
		zap.L().Warn("page cache write failed", zap.String("url", url), zap.Error(err))
	}
	return html, nil
}
