// Package merge links scraped provider records to the aggregated vendor
// ledger.
package merge

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/childcare-cli/internal/ledger"
	"github.com/sells-group/childcare-cli/internal/model"
	"github.com/sells-group/childcare-cli/internal/pipeline"
	"github.com/sells-group/childcare-cli/internal/resolve"
)

// Stats summarizes a merge.
type Stats struct {
	Records          int `json:"records"`
	Matched          int `json:"matched"`
	Unmatched        int `json:"unmatched"`
	FailedURLs       int `json:"failed_urls"`
	DuplicateLines   int `json:"duplicate_lines"`
	RecoveredByRetry int `json:"recovered_by_retry"`
	VendorsIndexed   int `json:"vendors_indexed"`
}

// LoadRecords reads one or more record streams in order. Each source URL
// yields at most one record: the first successful one. A failure entry is
// superseded by a successful entry for the same URL in any stream; URLs
// that only ever failed are dropped. Records keep the position where their
// URL first appeared.
func LoadRecords(paths ...string) ([]model.ProviderRecord, Stats, error) {
	var stats Stats
	type slot struct {
		rec    *model.ProviderRecord
		failed bool
	}
	var order []*slot
	byURL := make(map[string]*slot)

	for _, path := range paths {
		err := pipeline.ScanStream(path, func(_ int, e model.StreamEntry) error {
			s, seen := byURL[e.SourceURL]
			if !seen || e.SourceURL == "" {
				s = &slot{}
				order = append(order, s)
				if e.SourceURL != "" {
					byURL[e.SourceURL] = s
				}
			}
			switch {
			case e.IsFailed():
				s.failed = true
			case s.rec == nil:
				s.rec = e.Record
			default:
				stats.DuplicateLines++
			}
			return nil
		})
		if err != nil {
			return nil, stats, eris.Wrap(err, "merge: load records")
		}
	}

	records := make([]model.ProviderRecord, 0, len(order))
	for _, s := range order {
		if s.rec == nil {
			stats.FailedURLs++
			continue
		}
		if s.failed {
			stats.RecoveredByRetry++
		}
		records = append(records, *s.rec)
	}
	stats.Records = len(records)
	return records, stats, nil
}

// Merger attaches financials to provider records.
type Merger struct {
	table   *ledger.Table
	matcher *resolve.Matcher
}

// NewMerger indexes table for matching with the given threshold.
func NewMerger(table *ledger.Table, threshold int) *Merger {
	return &Merger{table: table, matcher: resolve.NewMatcher(table.Keys(), threshold)}
}

// Resolve matches a single record.
func (m *Merger) Resolve(rec model.ProviderRecord) model.MergedRecord {
	out := model.MergedRecord{ProviderRecord: rec}
	res := m.matcher.Match(resolve.CandidateKeys(rec.ProviderName))
	if !res.Accepted {
		return out
	}
	vendor, ok := m.table.Get(res.MatchedKey)
	if !ok {
		return out
	}
	out.Financials = &model.Financials{
		AggregatedVendor: vendor,
		MatchConfidence:  res.Confidence,
		MatchedOnName:    vendor.DisplayName,
		MatchedKey:       res.MatchedKey,
	}
	return out
}

// Merge resolves every record, preserving input order.
func (m *Merger) Merge(ctx context.Context, records []model.ProviderRecord) ([]model.MergedRecord, Stats, error) {
	out := make([]model.MergedRecord, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = m.Resolve(records[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, eris.Wrap(err, "merge: resolve records")
	}

	stats := Stats{Records: len(out), VendorsIndexed: m.matcher.Len()}
	for _, r := range out {
		if r.Matched() {
			stats.Matched++
		} else {
			stats.Unmatched++
		}
	}
	zap.L().Info("merged records",
		zap.Int("records", stats.Records),
		zap.Int("matched", stats.Matched),
		zap.Int("unmatched", stats.Unmatched),
	)
	return out, stats, nil
}
