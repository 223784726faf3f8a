package model

import (
	"encoding/json"
	"time"
)

// UnknownProviderName is used when a page has no recognizable header.
const UnknownProviderName = "Unknown"

// DocumentURLKey is the row key set when a table cell links to a document.
const DocumentURLKey = "document_url"

// TableRow maps a column header to its cell text.
type TableRow map[string]string

// ProviderRecord is the structured form of one provider detail page.
type ProviderRecord struct {
	SourceURL      string            `json:"source_url"`
	ProviderName   string            `json:"provider_name"`
	Address        string            `json:"address"`
	Phone          string            `json:"phone"`
	Details        map[string]string `json:"details"`
	Inspections    []TableRow        `json:"inspections"`
	Complaints     []TableRow        `json:"complaints"`
	LicenseHistory []TableRow        `json:"license_history"`
}

// NewProviderRecord returns a record for sourceURL with every collection
// initialized, so it never serializes a null.
func NewProviderRecord(sourceURL string) *ProviderRecord {
	return &ProviderRecord{
		SourceURL:      sourceURL,
		ProviderName:   UnknownProviderName,
		Details:        map[string]string{},
		Inspections:    []TableRow{},
		Complaints:     []TableRow{},
		LicenseHistory: []TableRow{},
	}
}

// ApplyDefaults fills nil collections with empty ones.
func (r *ProviderRecord) ApplyDefaults() {
	if r.Details == nil {
		r.Details = map[string]string{}
	}
	if r.Inspections == nil {
		r.Inspections = []TableRow{}
	}
	if r.Complaints == nil {
		r.Complaints = []TableRow{}
	}
	if r.LicenseHistory == nil {
		r.LicenseHistory = []TableRow{}
	}
}

// EntryStatus marks whether a stream line holds a record or a failure.
type EntryStatus string

const (
	EntryStatusOK     EntryStatus = "ok"
	EntryStatusFailed EntryStatus = "failed"
)

// StreamEntry is one line of the record stream. A failed entry still
// occupies a line so the line count stays equal to the number of URLs
// processed.
type StreamEntry struct {
	Status    EntryStatus     `json:"status"`
	Record    *ProviderRecord `json:"-"`
	SourceURL string          `json:"source_url"`
	Error     string          `json:"error,omitempty"`
	ErrorType string          `json:"error_type,omitempty"`
	FailedAt  *time.Time      `json:"failed_at,omitempty"`
}

// OK wraps a successfully extracted record.
func OK(rec *ProviderRecord) StreamEntry {
	return StreamEntry{Status: EntryStatusOK, Record: rec, SourceURL: rec.SourceURL}
}

// Failed builds a failure sentinel for sourceURL.
func Failed(sourceURL string, err error, errorType string, at time.Time) StreamEntry {
	at = at.UTC()
	return StreamEntry{
		Status:    EntryStatusFailed,
		SourceURL: sourceURL,
		Error:     err.Error(),
		ErrorType: errorType,
		FailedAt:  &at,
	}
}

// IsFailed reports whether the entry is a failure sentinel.
func (e StreamEntry) IsFailed() bool { return e.Status == EntryStatusFailed }

type okLine struct {
	Status EntryStatus `json:"status"`
	*ProviderRecord
}

type failedLine struct {
	Status    EntryStatus `json:"status"`
	SourceURL string      `json:"source_url"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
	FailedAt  *time.Time  `json:"failed_at,omitempty"`
}

// MarshalJSON flattens an OK entry into the record's own fields.
func (e StreamEntry) MarshalJSON() ([]byte, error) {
	if e.Status == EntryStatusFailed {
		return json.Marshal(failedLine{
			Status:    e.Status,
			SourceURL: e.SourceURL,
			Error:     e.Error,
			ErrorType: e.ErrorType,
			FailedAt:  e.FailedAt,
		})
	}
	rec := e.Record
	if rec == nil {
		rec = NewProviderRecord(e.SourceURL)
	}
	rec.ApplyDefaults()
	return json.Marshal(okLine{Status: EntryStatusOK, ProviderRecord: rec})
}

// UnmarshalJSON accepts both entry kinds. Lines without a status are
// treated as records.
func (e *StreamEntry) UnmarshalJSON(data []byte) error {
	var probe struct {
		Status EntryStatus `json:"status"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Status == EntryStatusFailed {
		var f failedLine
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*e = StreamEntry{
			Status:    EntryStatusFailed,
			SourceURL: f.SourceURL,
			Error:     f.Error,
			ErrorType: f.ErrorType,
			FailedAt:  f.FailedAt,
		}
		return nil
	}
	rec := &ProviderRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return err
	}
	rec.ApplyDefaults()
	*e = StreamEntry{Status: EntryStatusOK, Record: rec, SourceURL: rec.SourceURL}
	return nil
}
