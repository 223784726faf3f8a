// Package browser owns the headless Chrome session used to render the
// provider listing and detail pages.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Session is a single long-lived page. Callers acquire it once per run and
// must Close it on every exit path.
type Session interface {
	Navigate(ctx context.Context, url string) error
	ScrollHeight(ctx context.Context) (int64, error)
	ScrollTo(ctx context.Context, y int64) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Options configures the Chrome session.
type Options struct {
	Headless      bool
	ExecPath      string
	UserAgent     string
	ActionTimeout time.Duration
}

// ChromeSession drives one Chrome tab through chromedp.
type ChromeSession struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	opts        Options
	closeOnce   sync.Once
	closeErr    error
}

var _ Session = (*ChromeSession)(nil)

// NewChrome starts Chrome and opens a blank tab.
func NewChrome(opts Options) (*ChromeSession, error) {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 60 * time.Second
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &ChromeSession{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		opts:        opts,
	}

	// An empty Run starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		_ = s.Close()
		return nil, eris.Wrap(err, "browser: start chrome")
	}
	zap.L().Debug("browser: chrome started", zap.Bool("headless", opts.Headless))
	return s, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	out = append(out,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("log-level", "3"),
	)
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.UserAgent))
	}
	return out
}

// run executes actions on the tab, bounded by the action timeout and by the
// caller's ctx.
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(s.ctx, s.opts.ActionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the load event.
func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	return eris.Wrapf(s.run(ctx, chromedp.Navigate(url)), "browser: navigate %s", url)
}

// ScrollHeight returns document.body.scrollHeight.
func (s *ChromeSession) ScrollHeight(ctx context.Context) (int64, error) {
	var h int64
	if err := s.run(ctx, chromedp.Evaluate(`document.body.scrollHeight`, &h)); err != nil {
		return 0, eris.Wrap(err, "browser: read scroll height")
	}
	return h, nil
}

// ScrollTo scrolls the window to vertical offset y.
func (s *ChromeSession) ScrollTo(ctx context.Context, y int64) error {
	js := fmt.Sprintf(`window.scrollTo(0, %d);`, y)
	return eris.Wrap(s.run(ctx, chromedp.Evaluate(js, nil)), "browser: scroll")
}

// HTML returns the current document's outer HTML.
func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", eris.Wrap(err, "browser: read html")
	}
	return html, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *ChromeSession) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.ctx); err != nil && s.ctx.Err() == nil {
			s.closeErr = eris.Wrap(err, "browser: close")
		}
		s.cancelTab()
		s.cancelAlloc()
	})
	return s.closeErr
}
