package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrNoHeader is returned when a CSV input holds no records at all.
var ErrNoHeader = errors.New("csv: no header row")

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter rune // default ','
	TrimSpace bool
}

// Row is one parsed data row and the input line it started on.
type Row struct {
	Line   int
	Fields []string
}

// ReadCSV reads a headed CSV table. The first record is returned as the
// header. Rows the parser rejects (bad quoting) are logged and skipped;
// rows may have any number of fields.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]string, []Row, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1

	var (
		header []string
		rows   []Row
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, eris.Wrap(err, "csv: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				zap.L().Warn("csv: skipping malformed row",
					zap.Int("line", parseErr.StartLine),
					zap.Error(err),
				)
				continue
			}
			return nil, nil, eris.Wrap(err, "csv: read row")
		}

		if opts.TrimSpace {
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}
		}

		if header == nil {
			header = record
			continue
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, Row{Line: line, Fields: record})
	}

	if header == nil {
		return nil, nil, ErrNoHeader
	}
	return header, rows, nil
}
