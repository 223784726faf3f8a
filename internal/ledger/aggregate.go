package ledger

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/childcare-cli/internal/model"
)

// PeriodSeparator joins the period labels of grouped rows.
const PeriodSeparator = " | "

// MinKeyLen is the shortest canonical key kept after grouping.
const MinKeyLen = 3

// Table is the grouped ledger, keyed by canonical vendor key.
type Table struct {
	vendors map[string]model.AggregatedVendor
	keys    []string
}

// Aggregate groups rows by canonical key. The first row's vendor name is
// the display name, amounts are summed, and period labels are joined in row
// order. Keys shorter than MinKeyLen are dropped.
func Aggregate(rows []model.VendorLedgerRow) *Table {
	groups := make(map[string]*model.AggregatedVendor)
	periods := make(map[string][]string)
	for _, r := range rows {
		g, ok := groups[r.CanonicalKey]
		if !ok {
			g = &model.AggregatedVendor{CanonicalKey: r.CanonicalKey, DisplayName: r.VendorName}
			groups[r.CanonicalKey] = g
		}
		g.TotalAmount += r.Amount
		g.RowCount++
		periods[r.CanonicalKey] = append(periods[r.CanonicalKey], r.PeriodLabel)
	}

	t := &Table{vendors: make(map[string]model.AggregatedVendor, len(groups))}
	for key, g := range groups {
		if utf8.RuneCountInString(key) < MinKeyLen {
			continue
		}
		g.PeriodLabels = strings.Join(periods[key], PeriodSeparator)
		t.vendors[key] = *g
		t.keys = append(t.keys, key)
	}
	slices.Sort(t.keys)
	return t
}

// Keys returns the canonical keys in lexicographic order.
func (t *Table) Keys() []string { return slices.Clone(t.keys) }

// Get returns the group for key.
func (t *Table) Get(key string) (model.AggregatedVendor, bool) {
	v, ok := t.vendors[key]
	return v, ok
}

// Len is the number of groups.
func (t *Table) Len() int { return len(t.keys) }

// Vendors returns every group in key order.
func (t *Table) Vendors() []model.AggregatedVendor {
	out := make([]model.AggregatedVendor, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.vendors[k])
	}
	return out
}
