// Package collect gathers provider detail links from the infinite-scroll
// listing page.
package collect

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-cli/internal/browser"
)

// Defaults for the public listing site.
const (
	DefaultListingURL    = "https://www.findchildcarewa.org/PSS_Search?p=DEL%20Licensed&ft=Family%20Home%20Child%20Care%7CChild%20Care%20Center%7COutdoor%20Nature-Based%20Child%20Care%7CSchool-Age%20Program"
	DefaultBaseURL       = "https://www.findchildcarewa.org"
	DefaultMarker        = "a.btn.waco-button_dcyfBlue"
	DefaultDetailPattern = "/PSS_Provider?id="
)

// Options tunes the scroll loop and link selection.
type Options struct {
	InitialWait   time.Duration
	Pause         time.Duration
	JiggleOffset  int64
	JigglePause   time.Duration
	MaxRetries    int
	MaxScrolls    int // 0 means unlimited
	Marker        string
	DetailPattern string
	BaseURL       string
}

// DefaultOptions returns the settings the listing site needs to finish
// lazy-loading.
func DefaultOptions() Options {
	return Options{
		InitialWait:   5 * time.Second,
		Pause:         3 * time.Second,
		JiggleOffset:  1000,
		JigglePause:   time.Second,
		MaxRetries:    5,
		Marker:        DefaultMarker,
		DetailPattern: DefaultDetailPattern,
		BaseURL:       DefaultBaseURL,
	}
}

// Collector drives a browser session over the listing page.
type Collector struct {
	session browser.Session
	opts    Options
	sleep   func(ctx context.Context, d time.Duration) error
}

// New returns a Collector using session.
func New(session browser.Session, opts Options) *Collector {
	return &Collector{session: session, opts: opts, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Collect loads listingURL, scrolls until the page stops growing and
// returns the unique detail URLs in page order.
func (c *Collector) Collect(ctx context.Context, listingURL string) ([]string, error) {
	log := zap.L().With(zap.String("listing_url", listingURL))

	if err := c.session.Navigate(ctx, listingURL); err != nil {
		return nil, eris.Wrap(err, "collect: navigate to listing")
	}
	if err := c.sleep(ctx, c.opts.InitialWait); err != nil {
		return nil, eris.Wrap(err, "collect: initial wait")
	}

	scrolls, err := c.scrollUntilStable(ctx, log)
	if err != nil {
		return nil, err
	}

	html, err := c.session.HTML(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "collect: read listing html")
	}

	links, err := ExtractLinks(html, c.opts)
	if err != nil {
		return nil, err
	}
	log.Info("collected provider links", zap.Int("links", len(links)), zap.Int("scrolls", scrolls))
	return links, nil
}

func (c *Collector) scrollUntilStable(ctx context.Context, log *zap.Logger) (int, error) {
	last, err := c.session.ScrollHeight(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "collect: measure height")
	}

	retries := 0
	scrolls := 0
	for c.opts.MaxScrolls <= 0 || scrolls < c.opts.MaxScrolls {
		scrolls++
		height, err := c.scrollToBottom(ctx, last)
		if err != nil {
			return scrolls, err
		}

		if height == last {
			retries++
			log.Debug("page height unchanged, jiggling",
				zap.Int64("height", height), zap.Int("retry", retries))
			if height, err = c.jiggle(ctx, height); err != nil {
				return scrolls, err
			}
			if height == last && retries >= c.opts.MaxRetries {
				break
			}
		}
		if height != last {
			retries = 0
		}

		last = height
		log.Info("scrolled listing", zap.Int("scroll", scrolls), zap.Int64("height", last))
	}
	return scrolls, nil
}

func (c *Collector) scrollToBottom(ctx context.Context, height int64) (int64, error) {
	if err := c.session.ScrollTo(ctx, height); err != nil {
		return 0, eris.Wrap(err, "collect: scroll to bottom")
	}
	if err := c.sleep(ctx, c.opts.Pause); err != nil {
		return 0, eris.Wrap(err, "collect: pause")
	}
	h, err := c.session.ScrollHeight(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "collect: measure height")
	}
	return h, nil
}

// jiggle scrolls up a little and back down to retrigger lazy loading.
func (c *Collector) jiggle(ctx context.Context, height int64) (int64, error) {
	if err := c.session.ScrollTo(ctx, max(height-c.opts.JiggleOffset, 0)); err != nil {
		return 0, eris.Wrap(err, "collect: jiggle up")
	}
	if err := c.sleep(ctx, c.opts.JigglePause); err != nil {
		return 0, eris.Wrap(err, "collect: jiggle pause")
	}
	return c.scrollToBottom(ctx, height)
}

// ExtractLinks returns the absolute detail URLs in html, deduplicated in
// first-seen order.
func ExtractLinks(html string, opts Options) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "collect: parse listing html")
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "collect: parse base url %q", opts.BaseURL)
	}

	seen := make(map[string]struct{})
	links := []string{}
	doc.Find(opts.Marker).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || !strings.Contains(href, opts.DetailPattern) {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			zap.L().Debug("skipping malformed link", zap.String("href", href))
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links, nil
}
