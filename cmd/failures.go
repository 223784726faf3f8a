package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-cli/internal/collect"
	"github.com/sells-group/childcare-cli/internal/pipeline"
)

var (
	failuresStream string
	failuresOut    string
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Write the failed URLs of a record stream to a links file",
	Long:  "Lists every URL recorded as failed in the stream. Scrape that links file into a second stream and pass both to merge; a later success replaces the failure.",
	RunE: func(cmd *cobra.Command, args []string) error {
		stream := failuresStream
		if stream == "" {
			stream = cfg.Scrape.Output
		}

		urls, err := pipeline.Failures(stream)
		if err != nil {
			return err
		}
		if err := collect.WriteLinks(failuresOut, urls); err != nil {
			return err
		}

		zap.L().Info("failed urls written",
			zap.Int("count", len(urls)),
			zap.String("stream", stream),
			zap.String("path", failuresOut),
		)
		return nil
	},
}

func init() {
	failuresCmd.Flags().StringVarP(&failuresStream, "stream", "s", "", "record stream to read (default from config)")
	failuresCmd.Flags().StringVarP(&failuresOut, "out", "o", "failed_links.txt", "links file to write")
	rootCmd.AddCommand(failuresCmd)
}
