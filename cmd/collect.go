package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-cli/internal/browser"
	"github.com/sells-group/childcare-cli/internal/collect"
)

var (
	collectOut        string
	collectListingURL string
	collectMaxScrolls int
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect provider detail links from the search listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		out := collectOut
		if out == "" {
			out = cfg.Collect.LinksFile
		}
		listing := collectListingURL
		if listing == "" {
			listing = cfg.Collect.ListingURL
		}

		session, err := browser.NewChrome(browserOptions())
		if err != nil {
			return eris.Wrap(err, "start browser")
		}
		defer session.Close() //nolint:errcheck

		opts := collectOptions()
		if cmd.Flags().Changed("max-scrolls") {
			opts.MaxScrolls = collectMaxScrolls
		}

		links, err := collect.New(session, opts).Collect(ctx, listing)
		if err != nil {
			return eris.Wrap(err, "collect links")
		}

		if err := collect.WriteLinks(out, links); err != nil {
			return err
		}

		zap.L().Info("links saved", zap.Int("count", len(links)), zap.String("path", out))
		return nil
	},
}

func browserOptions() browser.Options {
	return browser.Options{
		Headless:      cfg.Browser.Headless,
		ExecPath:      cfg.Browser.ExecPath,
		UserAgent:     cfg.Browser.UserAgent,
		ActionTimeout: time.Duration(cfg.Browser.ActionTimeoutSecs) * time.Second,
	}
}

func collectOptions() collect.Options {
	c := cfg.Collect
	return collect.Options{
		InitialWait:   time.Duration(c.InitialWaitSecs) * time.Second,
		Pause:         time.Duration(c.PauseSecs) * time.Second,
		JiggleOffset:  c.JiggleOffset,
		JigglePause:   time.Duration(c.JigglePauseSecs) * time.Second,
		MaxRetries:    c.MaxRetries,
		MaxScrolls:    c.MaxScrolls,
		Marker:        c.Marker,
		DetailPattern: c.DetailPattern,
		BaseURL:       c.BaseURL,
	}
}

func init() {
	collectCmd.Flags().StringVarP(&collectOut, "out", "o", "", "links file to write (default from config)")
	collectCmd.Flags().StringVar(&collectListingURL, "listing-url", "", "search listing URL (default from config)")
	collectCmd.Flags().IntVar(&collectMaxScrolls, "max-scrolls", 0, "stop after this many scrolls, 0 for no limit")
	rootCmd.AddCommand(collectCmd)
}
