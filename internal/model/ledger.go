package model

// VendorLedgerRow is one payment row from the financial ledger.
type VendorLedgerRow struct {
	VendorName   string  `json:"vendor_name"`
	Amount       float64 `json:"amount"`
	PeriodLabel  string  `json:"period_label"`
	CanonicalKey string  `json:"canonical_key"`
}

// AggregatedVendor sums every ledger row sharing a canonical key.
type AggregatedVendor struct {
	CanonicalKey string  `json:"canonical_key" yaml:"canonical_key"`
	DisplayName  string  `json:"vendor_name" yaml:"vendor_name"`
	TotalAmount  float64 `json:"total_amount" yaml:"total_amount"`
	PeriodLabels string  `json:"period_labels" yaml:"period_labels"`
	RowCount     int     `json:"row_count" yaml:"row_count"`
}

// MatchResult is the outcome of resolving one provider against the vendor
// keys. MatchedKey is empty when nothing scored above zero.
type MatchResult struct {
	Candidate  string `json:"candidate,omitempty"`
	MatchedKey string `json:"matched_key,omitempty"`
	Confidence int    `json:"confidence"`
	Accepted   bool   `json:"accepted"`
}
