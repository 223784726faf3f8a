package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-cli/internal/browser"
	"github.com/sells-group/childcare-cli/internal/collect"
	"github.com/sells-group/childcare-cli/internal/fetcher"
	"github.com/sells-group/childcare-cli/internal/pipeline"
	"github.com/sells-group/childcare-cli/internal/resilience"
	"github.com/sells-group/childcare-cli/internal/store"
)

var (
	scrapeLinks       string
	scrapeOut         string
	scrapeConcurrency int
	scrapeFetcher     string
	scrapeUseCache    bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape provider detail pages into a resumable record stream",
	Long:  "Reads a links file and appends one JSON line per provider to the output. Rerunning resumes after the last complete line.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyScrapeFlags(cmd)
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		linksFile := scrapeLinks
		if linksFile == "" {
			linksFile = cfg.Collect.LinksFile
		}

		// A missing links file is fatal before the output is touched.
		urls, err := collect.ReadLinks(linksFile)
		if err != nil {
			return err
		}

		out, existing, err := pipeline.OpenOutput(cfg.Scrape.Output)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck

		if existing >= len(urls) {
			zap.L().Info("all links already processed",
				zap.Int("entries", existing), zap.Int("links", len(urls)))
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("local store unavailable, continuing without cache and run log", zap.Error(err))
			st = nil
		} else {
			defer st.Close() //nolint:errcheck
		}

		f, closeFetcher, err := buildFetcher(st)
		if err != nil {
			return err
		}
		defer closeFetcher()

		var run string
		if st != nil {
			r, err := st.StartRun(ctx, linksFile, cfg.Scrape.Output)
			if err != nil {
				zap.L().Warn("record run start failed", zap.Error(err))
			} else {
				run = r.ID
			}
		}

		retry := resilience.DefaultRetryConfig()
		retry.MaxAttempts = cfg.Fetch.MaxAttempts

		runner := pipeline.NewRunner(f, out, pipeline.Options{
			Concurrency: cfg.Scrape.Concurrency,
			Retry:       retry,
		})
		sum, runErr := runner.Run(ctx, urls, existing)

		if run != "" {
			counts := store.RunCounts{
				Total:     sum.Total,
				Skipped:   sum.Skipped,
				Succeeded: sum.Succeeded,
				Failed:    sum.Failed,
			}
			// The signal context may already be cancelled; record the outcome anyway.
			if err := st.FinishRun(context.WithoutCancel(ctx), run, counts, runErr); err != nil {
				zap.L().Warn("record run finish failed", zap.String("run_id", run), zap.Error(err))
			}
		}

		zap.L().Info("scrape finished",
			zap.Int("total", sum.Total),
			zap.Int("skipped", sum.Skipped),
			zap.Int("succeeded", sum.Succeeded),
			zap.Int("failed", sum.Failed),
			zap.Duration("duration", sum.Duration),
		)
		if runErr != nil {
			return runErr
		}
		if sum.Failed > 0 {
			zap.L().Info("some providers failed; run `childcare-cli failures` to list them for a retry",
				zap.Int("failed", sum.Failed))
		}
		return nil
	},
}

func applyScrapeFlags(cmd *cobra.Command) {
	if scrapeOut != "" {
		cfg.Scrape.Output = scrapeOut
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Scrape.Concurrency = scrapeConcurrency
	}
	if scrapeFetcher != "" {
		cfg.Scrape.Fetcher = scrapeFetcher
	}
	if cmd.Flags().Changed("cache") {
		cfg.Scrape.UseCache = scrapeUseCache
	}
}

// buildFetcher returns the configured page fetcher, wrapped in the page
// cache when enabled, and a func releasing whatever it opened.
func buildFetcher(st store.Store) (fetcher.PageFetcher, func(), error) {
	var f fetcher.PageFetcher
	closeFn := func() {}

	switch cfg.Scrape.Fetcher {
	case "http":
		f = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			RatePerSec: cfg.Fetch.RatePerSec,
			Burst:      cfg.Fetch.Burst,
		})
	case "browser":
		session, err := browser.NewChrome(browserOptions())
		if err != nil {
			return nil, nil, eris.Wrap(err, "start browser")
		}
		closeFn = func() { _ = session.Close() }
		f = fetcher.NewBrowserFetcher(session, time.Duration(cfg.Scrape.SettleMillis)*time.Millisecond)
	default:
		return nil, nil, eris.Errorf("unsupported fetcher: %s", cfg.Scrape.Fetcher)
	}

	if cfg.Scrape.UseCache && st != nil {
		ttl := time.Duration(cfg.Scrape.CacheTTLHours) * time.Hour
		f = fetcher.NewCachingFetcher(f, st, ttl)
	}
	return f, closeFn, nil
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeLinks, "links", "l", "", "links file to read (default from config)")
	scrapeCmd.Flags().StringVarP(&scrapeOut, "out", "o", "", "record stream to append to (default from config)")
	scrapeCmd.Flags().IntVarP(&scrapeConcurrency, "concurrency", "c", 1, "pages fetched at once")
	scrapeCmd.Flags().StringVar(&scrapeFetcher, "fetcher", "", "page fetcher: browser or http (default from config)")
	scrapeCmd.Flags().BoolVar(&scrapeUseCache, "cache", false, "serve repeat fetches from the local page cache")
	rootCmd.AddCommand(scrapeCmd)
}
