package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	pages   map[string]string
	readErr error
	sets    int
}

func (m *memCache) GetCachedPage(_ context.Context, url string) (string, bool, error) {
	if m.readErr != nil {
		return "", false, m.readErr
	}
	html, ok := m.pages[url]
	return html, ok, nil
}

func (m *memCache) SetCachedPage(_ context.Context, url, html string, _ time.Duration) error {
	m.pages[url] = html
	m.sets++
	return nil
}

func TestCachingFetcher(t *testing.T) {
	calls := 0
	next := Func(func(_ context.Context, url string) (string, error) {
		calls++
		return "<html>" + url + "</html>", nil
	})
	cache := &memCache{pages: map[string]string{}}
	f := NewCachingFetcher(next, cache, time.Hour)

	for range 3 {
		html, err := f.Fetch(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "<html>u1</html>", html)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, cache.sets)
}

func TestCachingFetcher_ReadErrorFallsThrough(t *testing.T) {
	next := Func(func(context.Context, string) (string, error) { return "fresh", nil })
	cache := &memCache{pages: map[string]string{}, readErr: errors.New("disk gone")}

	html, err := NewCachingFetcher(next, cache, time.Hour).Fetch(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", html)
}

func TestCachingFetcher_FetchErrorNotCached(t *testing.T) {
	next := Func(func(context.Context, string) (string, error) { return "", errors.New("boom") })
	cache := &memCache{pages: map[string]string{}}

	_, err := NewCachingFetcher(next, cache, time.Hour).Fetch(context.Background(), "u1")
	require.Error(t, err)
	assert.Zero(t, cache.sets)
}
