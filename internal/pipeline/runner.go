// Package pipeline visits provider pages and appends one stream entry per
// URL, resuming from the entries already committed.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/childcare-cli/internal/extract"
	"github.com/sells-group/childcare-cli/internal/fetcher"
	"github.com/sells-group/childcare-cli/internal/model"
	"github.com/sells-group/childcare-cli/internal/resilience"
)

// Options configures a Runner.
type Options struct {
	// Concurrency is the number of pages fetched at once. Entries are
	// still committed in input order.
	Concurrency int
	Retry       resilience.RetryConfig
}

// Summary reports what a run did.
type Summary struct {
	Total     int           `json:"total"`
	Skipped   int           `json:"skipped"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Processed is the number of entries appended by this run.
func (s Summary) Processed() int { return s.Succeeded + s.Failed }

// Runner drives fetch and extract over a URL list.
type Runner struct {
	fetch fetcher.PageFetcher
	out   *Output
	opts  Options
	parse func(html, sourceURL string) *model.ProviderRecord
	now   func() time.Time
}

// NewRunner returns a Runner that appends to out.
func NewRunner(f fetcher.PageFetcher, out *Output, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Runner{
		fetch: f,
		out:   out,
		opts:  opts,
		parse: extract.Parse,
		now:   time.Now,
	}
}

type result struct {
	entry model.StreamEntry
	// interrupted is set when the run was cancelled before the URL
	// finished; nothing is written for it.
	interrupted bool
}

// Run processes urls[skip:], where skip is the number of entries already in
// the output. Per-URL failures become failure entries; only cancellation or
// a write error stops the run.
func (r *Runner) Run(ctx context.Context, urls []string, skip int) (Summary, error) {
	start := time.Now()
	sum := Summary{Total: len(urls), Skipped: min(skip, len(urls))}
	if skip > len(urls) {
		zap.L().Warn("output has more entries than links",
			zap.Int("entries", skip), zap.Int("links", len(urls)))
	}
	if sum.Skipped > 0 {
		zap.L().Info("resuming", zap.Int("skipping", sum.Skipped), zap.Int("total", sum.Total))
	}
	todo := urls[sum.Skipped:]

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	window := 2 * r.opts.Concurrency
	pending := make(chan chan result, window)
	workers := make(chan struct{}, r.opts.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(pending)
		for _, u := range todo {
			select {
			case workers <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			slot := make(chan result, 1)
			select {
			case pending <- slot:
			case <-gctx.Done():
				<-workers
				return gctx.Err()
			}
			g.Go(func() error {
				defer func() { <-workers }()
				slot <- r.process(gctx, u)
				return nil
			})
		}
		return nil
	})

	var runErr error
	done := sum.Skipped
	for slot := range pending {
		res := <-slot
		if runErr != nil {
			continue
		}
		if res.interrupted {
			runErr = ctx.Err()
			if runErr == nil {
				runErr = context.Canceled
			}
			cancel()
			continue
		}
		if err := r.out.Append(res.entry); err != nil {
			runErr = err
			cancel()
			continue
		}
		done++
		if res.entry.IsFailed() {
			sum.Failed++
		} else {
			sum.Succeeded++
		}
		zap.L().Info("processed provider",
			zap.Int("processed", done),
			zap.Int("total", sum.Total),
			zap.String("url", res.entry.SourceURL),
			zap.String("status", string(res.entry.Status)),
		)
	}

	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	sum.Duration = time.Since(start)
	if runErr != nil {
		return sum, eris.Wrap(runErr, "pipeline: run interrupted")
	}
	return sum, nil
}

func (r *Runner) process(ctx context.Context, url string) result {
	retry := r.opts.Retry
	retry.OnRetry = resilience.RetryLogger(url)

	html, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		return r.fetch.Fetch(ctx, url)
	})
	if err != nil {
		if ctx.Err() != nil {
			return result{interrupted: true}
		}
		errType := resilience.ClassifyError(err)
		zap.L().Error("provider fetch failed",
			zap.String("url", url),
			zap.String("error_type", errType),
			zap.Error(err),
		)
		return result{entry: model.Failed(url, err, errType, r.now())}
	}

	return result{entry: model.OK(r.parse(html, url))}
}
