package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-cli/internal/ledger"
	"github.com/sells-group/childcare-cli/internal/merge"
)

var (
	mergeStreams   []string
	mergeLedger    string
	mergeOut       string
	mergeFormat    string
	mergeThreshold int
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Match scraped providers to the vendor payment ledger",
	Long:  "Aggregates the ledger by normalized vendor name, fuzzy matches every provider record, and writes the merged dataset once.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if mergeLedger != "" {
			cfg.Ledger.Path = mergeLedger
		}
		if mergeOut != "" {
			cfg.Merge.Output = mergeOut
		}
		if mergeFormat != "" {
			cfg.Merge.Format = mergeFormat
		}
		if cmd.Flags().Changed("threshold") {
			cfg.Match.Threshold = mergeThreshold
		}
		if err := cfg.Validate("merge"); err != nil {
			return err
		}

		format, err := merge.ParseFormat(cfg.Merge.Format, cfg.Merge.Output)
		if err != nil {
			return err
		}

		streams := mergeStreams
		if len(streams) == 0 {
			streams = []string{cfg.Scrape.Output}
		}

		rows, err := ledger.Load(ctx, cfg.Ledger.Path, cfg.Ledger.Columns)
		if err != nil {
			return eris.Wrap(err, "load ledger")
		}
		table := ledger.Aggregate(rows)
		zap.L().Info("ledger aggregated",
			zap.Int("rows", len(rows)),
			zap.Int("vendors", table.Len()),
		)

		records, loadStats, err := merge.LoadRecords(streams...)
		if err != nil {
			return err
		}

		merged, stats, err := merge.NewMerger(table, cfg.Match.Threshold).Merge(ctx, records)
		if err != nil {
			return err
		}

		if err := merge.Write(cfg.Merge.Output, format, merged); err != nil {
			return err
		}

		zap.L().Info("merge complete",
			zap.String("path", cfg.Merge.Output),
			zap.Int("records", stats.Records),
			zap.Int("matched", stats.Matched),
			zap.Int("unmatched", stats.Unmatched),
			zap.Int("failed_urls", loadStats.FailedURLs),
			zap.Int("recovered_by_retry", loadStats.RecoveredByRetry),
			zap.Int("duplicate_lines", loadStats.DuplicateLines),
		)
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringSliceVarP(&mergeStreams, "stream", "s", nil, "record streams to merge, in order (default from config)")
	mergeCmd.Flags().StringVar(&mergeLedger, "ledger", "", "vendor payment ledger, .csv or .xlsx (default from config)")
	mergeCmd.Flags().StringVarP(&mergeOut, "out", "o", "", "merged output path (default from config)")
	mergeCmd.Flags().StringVar(&mergeFormat, "format", "", "output format: json or yaml (default from extension)")
	mergeCmd.Flags().IntVar(&mergeThreshold, "threshold", 85, "match scores must exceed this to be accepted")
	rootCmd.AddCommand(mergeCmd)
}
