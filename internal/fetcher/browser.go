package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/childcare-cli/internal/browser"
	"github.com/sells-group/childcare-cli/internal/resilience"
)

// BrowserFetcher renders pages in a shared browser session. The session is
// a single tab, so calls are serialized.
type BrowserFetcher struct {
	mu      sync.Mutex
	session browser.Session
	settle  time.Duration
}

var _ PageFetcher = (*BrowserFetcher)(nil)

// NewBrowserFetcher wraps session. settle is an extra wait after the load
// event for client-side tabs to render; zero disables it.
func NewBrowserFetcher(session browser.Session, settle time.Duration) *BrowserFetcher {
	return &BrowserFetcher{session: session, settle: settle}
}

// Fetch navigates to url and returns the rendered HTML.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.session.Navigate(ctx, url); err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", resilience.NewTransientError(err, 0)
	}

	if b.settle > 0 {
		t := time.NewTimer(b.settle)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}

	html, err := b.session.HTML(ctx)
	if err != nil {
		return "", resilience.NewTransientError(err, 0)
	}
	return html, nil
}
