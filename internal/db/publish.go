package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-cli/internal/model"
)

// ProvidersTable is the published provider table inside Schema.
const ProvidersTable = "providers"

var providerColumns = []string{
	"source_url",
	"provider_name",
	"address",
	"phone",
	"details",
	"inspections",
	"complaints",
	"license_history",
	"matched",
	"canonical_key",
	"vendor_name",
	"total_amount",
	"period_labels",
	"row_count",
	"match_confidence",
	"published_at",
}

// PublishOptions controls how records reach the table.
type PublishOptions struct {
	// Replace truncates the table and reloads it. Otherwise rows are
	// upserted by source_url.
	Replace bool
}

// stagingTable receives the upsert rows before they are merged.
const stagingTable = "_publish_providers"

// Publish writes records to childcare.providers in one transaction and
// returns the number of rows written. Records without a source URL and
// repeated URLs are skipped.
func Publish(ctx context.Context, pool Pool, records []model.MergedRecord, opts PublishOptions) (int64, error) {
	rows := providerRows(records, time.Now().UTC())
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: publish: begin tx")
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			zap.L().Debug("db: publish: rollback", zap.Error(err))
		}
	}()

	var n int64
	if opts.Replace {
		n, err = replaceProviders(ctx, tx, rows)
	} else {
		n, err = upsertProviders(ctx, tx, rows)
	}
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: publish: commit tx")
	}
	return n, nil
}

func replaceProviders(ctx context.Context, tx pgx.Tx, rows [][]any) (int64, error) {
	target := pgx.Identifier{Schema, ProvidersTable}
	if _, err := tx.Exec(ctx, "TRUNCATE "+target.Sanitize()); err != nil {
		return 0, eris.Wrap(err, "db: publish: truncate providers")
	}
	n, err := tx.CopyFrom(ctx, target, providerColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: publish: COPY INTO %s.%s", Schema, ProvidersTable)
	}
	return n, nil
}

// upsertProviders stages rows with COPY and merges them on source_url.
func upsertProviders(ctx context.Context, tx pgx.Tx, rows [][]any) (int64, error) {
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{stagingTable}.Sanitize(),
		pgx.Identifier{Schema, ProvidersTable}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrap(err, "db: publish: create staging table")
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stagingTable}, providerColumns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrap(err, "db: publish: COPY INTO staging table")
	}

	tag, err := tx.Exec(ctx, upsertSQL())
	if err != nil {
		return 0, eris.Wrap(err, "db: publish: merge staged providers")
	}
	return tag.RowsAffected(), nil
}

// upsertSQL merges the staging table into the providers table, replacing
// every column except the source_url key.
func upsertSQL() string {
	cols := make([]string, len(providerColumns))
	var set []string
	for i, c := range providerColumns {
		id := pgx.Identifier{c}.Sanitize()
		cols[i] = id
		if c != "source_url" {
			set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", id, id))
		}
	}
	colList := strings.Join(cols, ", ")
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		pgx.Identifier{Schema, ProvidersTable}.Sanitize(),
		colList,
		colList,
		pgx.Identifier{stagingTable}.Sanitize(),
		pgx.Identifier{"source_url"}.Sanitize(),
		strings.Join(set, ", "),
	)
}

func providerRows(records []model.MergedRecord, now time.Time) [][]any {
	seen := make(map[string]struct{}, len(records))
	rows := make([][]any, 0, len(records))
	for i := range records {
		r := records[i]
		if r.SourceURL == "" {
			continue
		}
		if _, dup := seen[r.SourceURL]; dup {
			continue
		}
		seen[r.SourceURL] = struct{}{}
		r.ApplyDefaults()

		row := []any{
			r.SourceURL,
			r.ProviderName,
			r.Address,
			r.Phone,
			r.Details,
			r.Inspections,
			r.Complaints,
			r.LicenseHistory,
			r.Matched(),
			nil, nil, nil, nil, nil, nil,
			now,
		}
		if f := r.Financials; f != nil {
			row[9] = f.CanonicalKey
			row[10] = f.DisplayName
			row[11] = f.TotalAmount
			row[12] = f.PeriodLabels
			row[13] = f.RowCount
			row[14] = f.MatchConfidence
		}
		rows = append(rows, row)
	}
	if skipped := len(records) - len(rows); skipped > 0 {
		zap.L().Warn("db: skipped records without a unique source_url", zap.Int("skipped", skipped))
	}
	return rows
}
