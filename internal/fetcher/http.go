package fetcher

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/childcare-cli/internal/resilience"
)

// HTTPOptions configures the HTTP page fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	RatePerSec   float64
	Burst        int
	MaxBodyBytes int64
}

// recoverAfter is the number of consecutive successes before a throttled
// limiter steps back toward its configured rate.
const recoverAfter = 10

// ThrottleLimiter paces requests to one site. A 429 halves the rate, down
// to a quarter of the configured rate; a run of successes doubles it again,
// never above the configured rate.
type ThrottleLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	base    rate.Limit
	floor   rate.Limit
	current rate.Limit
	streak  int
}

// NewThrottleLimiter returns a limiter starting at perSec.
func NewThrottleLimiter(perSec rate.Limit, burst int) *ThrottleLimiter {
	return &ThrottleLimiter{
		limiter: rate.NewLimiter(perSec, burst),
		base:    perSec,
		floor:   perSec / 4,
		current: perSec,
	}
}

// Wait blocks until the next request may start.
func (l *ThrottleLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Succeeded records a successful response.
func (l *ThrottleLimiter) Succeeded() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current >= l.base {
		return
	}
	l.streak++
	if l.streak < recoverAfter {
		return
	}
	l.streak = 0
	l.current = min(l.current*2, l.base)
	l.limiter.SetLimit(l.current)
	zap.L().Info("http: throttle easing", zap.Float64("rate", float64(l.current)))
}

// Throttled records a 429 response.
func (l *ThrottleLimiter) Throttled() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.streak = 0
	l.current = max(l.current/2, l.floor)
	l.limiter.SetLimit(l.current)
	zap.L().Warn("http: throttled by server, slowing down",
		zap.Float64("rate", float64(l.current)),
	)
}

// Limit returns the current rate.
func (l *ThrottleLimiter) Limit() rate.Limit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// HTTPFetcher fetches server-rendered provider pages over plain HTTP. It
// makes one attempt per call; 429, 5xx and network failures come back as
// resilience.TransientError so the caller's retry policy can decide.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *ThrottleLimiter
}

var _ PageFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "childcare-cli/1.0"
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 8 << 20
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		limiter: NewThrottleLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
	}
}

// Limiter exposes the fetcher's rate limiter.
func (f *HTTPFetcher) Limiter() *ThrottleLimiter { return f.limiter }

// Fetch GETs url and returns the body as a string.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "http: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "http: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrapf(err, "http: get %s", url), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		f.limiter.Throttled()
	}
	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("http: status %d from %s", resp.StatusCode, url)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return "", statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrapf(err, "http: read body %s", url), 0)
	}

	f.limiter.Succeeded()
	return string(body), nil
}
