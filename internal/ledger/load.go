// Package ledger loads the vendor payment ledger and groups it by
// canonical vendor key.
package ledger

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-cli/internal/fetcher"
	"github.com/sells-group/childcare-cli/internal/model"
	"github.com/sells-group/childcare-cli/internal/resolve"
)

// Columns names the ledger header fields that are read.
type Columns struct {
	Vendor string `mapstructure:"vendor"`
	Amount string `mapstructure:"amount"`
	Period string `mapstructure:"period"`
}

// DefaultColumns matches the state vendor payment export.
func DefaultColumns() Columns {
	return Columns{
		Vendor: "Vendor",
		Amount: "Amounts Sum",
		Period: "Months (C/FMonth list)",
	}
}

// Load reads the ledger at path. Files ending in .xlsx are read as
// spreadsheets, everything else as CSV.
func Load(ctx context.Context, path string, cols Columns) ([]model.VendorLedgerRow, error) {
	var (
		header []string
		rows   []fetcher.Row
		err    error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		header, rows, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "ledger: read %s", path)
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ledger: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		header, rows, err = fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "ledger: read %s", path)
		}
	}
	return parseRows(header, rows, cols)
}

func parseRows(header []string, rows []fetcher.Row, cols Columns) ([]model.VendorLedgerRow, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	vendorIdx, err := column(index, cols.Vendor)
	if err != nil {
		return nil, err
	}
	amountIdx, err := column(index, cols.Amount)
	if err != nil {
		return nil, err
	}
	periodIdx, err := column(index, cols.Period)
	if err != nil {
		return nil, err
	}

	out := make([]model.VendorLedgerRow, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if len(row.Fields) > len(header) {
			skipped++
			zap.L().Debug("ledger: skipping row with extra fields",
				zap.Int("line", row.Line), zap.Int("fields", len(row.Fields)))
			continue
		}
		vendor := field(row.Fields, vendorIdx)
		out = append(out, model.VendorLedgerRow{
			VendorName:   vendor,
			Amount:       parseAmount(field(row.Fields, amountIdx)),
			PeriodLabel:  field(row.Fields, periodIdx),
			CanonicalKey: resolve.Normalize(vendor),
		})
	}
	if skipped > 0 {
		zap.L().Warn("ledger: skipped malformed rows", zap.Int("skipped", skipped))
	}
	return out, nil
}

func column(index map[string]int, name string) (int, error) {
	i, ok := index[name]
	if !ok {
		return 0, eris.Errorf("ledger: missing column %q", name)
	}
	return i, nil
}

// field returns fields[i], or "" for a short row.
func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// parseAmount treats anything that is not a finite number as zero.
func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
