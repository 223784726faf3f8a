package model

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// NotFoundMarker is written in place of financials when no vendor matched.
const NotFoundMarker = "Not Found"

// Financials is the vendor data attached to an accepted match.
type Financials struct {
	AggregatedVendor `yaml:",inline"`
	MatchConfidence  int    `json:"match_confidence" yaml:"match_confidence"`
	MatchedOnName    string `json:"matched_on_name" yaml:"matched_on_name"`
	MatchedKey       string `json:"matched_key" yaml:"matched_key"`
}

// MergedRecord is a provider record plus its financial match, if any.
type MergedRecord struct {
	ProviderRecord
	Financials *Financials `json:"-"`
}

// Matched reports whether financials are attached.
func (m MergedRecord) Matched() bool { return m.Financials != nil }

type mergedJSON struct {
	ProviderRecord
	Financials json.RawMessage `json:"financials"`
}

// MarshalJSON writes financials as an object, or as the "Not Found" marker.
func (m MergedRecord) MarshalJSON() ([]byte, error) {
	m.ApplyDefaults()

	var fin []byte
	var err error
	if m.Financials != nil {
		fin, err = json.Marshal(m.Financials)
	} else {
		fin, err = json.Marshal(NotFoundMarker)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(mergedJSON{ProviderRecord: m.ProviderRecord, Financials: fin})
}

// UnmarshalJSON reverses MarshalJSON. Missing, null, or string financials
// all decode as unmatched.
func (m *MergedRecord) UnmarshalJSON(data []byte) error {
	var raw mergedJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw.ApplyDefaults()
	m.ProviderRecord = raw.ProviderRecord
	m.Financials = nil

	fin := bytes.TrimSpace(raw.Financials)
	if len(fin) == 0 || fin[0] != '{' {
		return nil
	}
	var f Financials
	if err := json.Unmarshal(fin, &f); err != nil {
		return eris.Wrap(err, "model: decode financials")
	}
	m.Financials = &f
	return nil
}

// MarshalYAML mirrors the JSON shape for YAML output.
func (m MergedRecord) MarshalYAML() (any, error) {
	m.ApplyDefaults()
	var fin any = NotFoundMarker
	if m.Financials != nil {
		fin = m.Financials
	}
	return struct {
		SourceURL      string            `yaml:"source_url"`
		ProviderName   string            `yaml:"provider_name"`
		Address        string            `yaml:"address"`
		Phone          string            `yaml:"phone"`
		Details        map[string]string `yaml:"details"`
		Inspections    []TableRow        `yaml:"inspections"`
		Complaints     []TableRow        `yaml:"complaints"`
		LicenseHistory []TableRow        `yaml:"license_history"`
		Financials     any               `yaml:"financials"`
	}{
		SourceURL:      m.SourceURL,
		ProviderName:   m.ProviderName,
		Address:        m.Address,
		Phone:          m.Phone,
		Details:        m.Details,
		Inspections:    m.Inspections,
		Complaints:     m.Complaints,
		LicenseHistory: m.LicenseHistory,
		Financials:     fin,
	}, nil
}
