package main

import (
	"bufio"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-cli/internal/merge"
	"github.com/sells-group/childcare-cli/internal/report"
)

var (
	exportIn  string
	exportOut string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the merged dataset as a plain-text knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := exportIn
		if in == "" {
			in = cfg.Merge.Output
		}

		records, err := merge.ReadMerged(in)
		if err != nil {
			return err
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", exportOut)
		}
		defer f.Close() //nolint:errcheck

		w := bufio.NewWriter(f)
		if err := report.Write(w, records); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return eris.Wrapf(err, "write %s", exportOut)
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "close %s", exportOut)
		}

		zap.L().Info("export written", zap.Int("providers", len(records)), zap.String("path", exportOut))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportIn, "in", "i", "", "merged JSON file (default from config)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "AI_KNOWLEDGE_BASE.txt", "text file to write")
	rootCmd.AddCommand(exportCmd)
}
