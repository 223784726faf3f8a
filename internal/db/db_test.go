package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/childcare-cli/internal/model"
)

func mergedRecords() []model.MergedRecord {
	matched := model.MergedRecord{ProviderRecord: *model.NewProviderRecord("https://x/p1")}
	matched.ProviderName = "Sunshine"
	matched.Financials = &model.Financials{
		AggregatedVendor: model.AggregatedVendor{
			CanonicalKey: "SUNSHINE", DisplayName: "Sunshine LLC", TotalAmount: 150, RowCount: 2,
		},
		MatchConfidence: 100,
		MatchedOnName:   "Sunshine LLC",
		MatchedKey:      "SUNSHINE",
	}
	unmatched := model.MergedRecord{ProviderRecord: *model.NewProviderRecord("https://x/p2")}
	dup := model.MergedRecord{ProviderRecord: *model.NewProviderRecord("https://x/p1")}
	noURL := model.MergedRecord{ProviderRecord: *model.NewProviderRecord("")}
	return []model.MergedRecord{matched, unmatched, dup, noURL}
}

func TestProviderRows(t *testing.T) {
	rows := providerRows(mergedRecords(), time.Time{})
	require.Len(t, rows, 2)
	require.Len(t, rows[0], len(providerColumns))

	assert.Equal(t, "https://x/p1", rows[0][0])
	assert.Equal(t, true, rows[0][8])
	assert.Equal(t, "SUNSHINE", rows[0][9])
	assert.Equal(t, 150.0, rows[0][11])
	assert.Equal(t, 100, rows[0][14])

	assert.Equal(t, "https://x/p2", rows[1][0])
	assert.Equal(t, false, rows[1][8])
	assert.Nil(t, rows[1][9])
	assert.Equal(t, map[string]string{}, rows[1][4])
}

func TestPublish_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_publish_providers"}, providerColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "childcare"."providers"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := Publish(context.Background(), mock, mergedRecords(), PublishOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_Replace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE").WillReturnResult(pgxmock.NewResult("TRUNCATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"childcare", "providers"}, providerColumns).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := Publish(context.Background(), mock, mergedRecords(), PublishOptions{Replace: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_CopyErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE").WillReturnResult(pgxmock.NewResult("TRUNCATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"childcare", "providers"}, providerColumns).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = Publish(context.Background(), mock, mergedRecords(), PublishOptions{Replace: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO childcare.providers")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_Empty(t *testing.T) {
	n, err := Publish(context.Background(), nil, nil, PublishOptions{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPublish_UpsertErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_publish_providers"}, providerColumns).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("constraint violated"))
	mock.ExpectRollback()

	_, err = Publish(context.Background(), mock, mergedRecords(), PublishOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge staged providers")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL(t *testing.T) {
	sql := upsertSQL()
	assert.Contains(t, sql, `INSERT INTO "childcare"."providers" ("source_url", "provider_name"`)
	assert.Contains(t, sql, `FROM "_publish_providers"`)
	assert.Contains(t, sql, `ON CONFLICT ("source_url") DO UPDATE SET "provider_name" = EXCLUDED."provider_name"`)
	assert.Contains(t, sql, `"published_at" = EXCLUDED."published_at"`)
	assert.NotContains(t, sql, `"source_url" = EXCLUDED`)
}

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("pg_advisory_lock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS childcare").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM childcare.schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS childcare.providers").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO childcare.schema_migrations").
		WithArgs("001_providers.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("pg_advisory_unlock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_SkipsApplied(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("pg_advisory_lock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS childcare").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM childcare.schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).AddRow("001_providers.sql"))
	mock.ExpectExec("pg_advisory_unlock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}
