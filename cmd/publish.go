package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-cli/internal/db"
	"github.com/sells-group/childcare-cli/internal/merge"
)

var (
	publishIn      string
	publishReplace bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Load the merged dataset into Postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("publish"); err != nil {
			return err
		}

		in := publishIn
		if in == "" {
			in = cfg.Merge.Output
		}
		records, err := merge.ReadMerged(in)
		if err != nil {
			return err
		}

		pool, err := db.Connect(ctx, cfg.Postgres.DatabaseURL, cfg.Postgres.MaxConns)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "migrate postgres")
		}

		n, err := db.Publish(ctx, pool, records, db.PublishOptions{Replace: publishReplace})
		if err != nil {
			return err
		}

		zap.L().Info("providers published",
			zap.Int64("rows", n),
			zap.Bool("replace", publishReplace),
		)
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVarP(&publishIn, "in", "i", "", "merged JSON file (default from config)")
	publishCmd.Flags().BoolVar(&publishReplace, "replace", false, "truncate the providers table before loading")
	rootCmd.AddCommand(publishCmd)
}
