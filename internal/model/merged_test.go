package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func matchedRecord() MergedRecord {
	rec := NewProviderRecord("https://x/p1")
	rec.ProviderName = "Sunshine LLC"
	return MergedRecord{
		ProviderRecord: *rec,
		Financials: &Financials{
			AggregatedVendor: AggregatedVendor{
				CanonicalKey: "SUNSHINE",
				DisplayName:  "Sunshine LLC",
				TotalAmount:  1250.5,
				PeriodLabels: "2024-01 | 2024-02",
				RowCount:     2,
			},
			MatchConfidence: 92,
			MatchedOnName:   "Sunshine LLC",
			MatchedKey:      "SUNSHINE",
		},
	}
}

func TestMergedRecord_MarshalMatched(t *testing.T) {
	data, err := json.Marshal(matchedRecord())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	fin, ok := raw["financials"].(map[string]any)
	require.True(t, ok, "financials should be an object")
	assert.Equal(t, 1250.5, fin["total_amount"])
	assert.Equal(t, float64(92), fin["match_confidence"])
	assert.Equal(t, "Sunshine LLC", fin["matched_on_name"])
	assert.Equal(t, "Sunshine LLC", raw["provider_name"])
}

func TestMergedRecord_MarshalNotFound(t *testing.T) {
	rec := NewProviderRecord("https://x/p2")
	data, err := json.Marshal(MergedRecord{ProviderRecord: *rec})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "Not Found", raw["financials"])
}

func TestMergedRecord_UnmarshalRoundTrip(t *testing.T) {
	want := matchedRecord()
	data, err := json.Marshal(want)
	require.NoError(t, err)

	var got MergedRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.Matched())
	assert.Equal(t, want.Financials, got.Financials)
	assert.Equal(t, want.ProviderRecord, got.ProviderRecord)
}

func TestMergedRecord_UnmarshalMarkerVariants(t *testing.T) {
	for _, line := range []string{
		`{"source_url":"u","financials":"Not Found"}`,
		`{"source_url":"u","financials":null}`,
		`{"source_url":"u"}`,
	} {
		var got MergedRecord
		require.NoError(t, json.Unmarshal([]byte(line), &got), line)
		assert.False(t, got.Matched(), line)
		assert.NotNil(t, got.Details, line)
	}
}

func TestMergedRecord_MarshalYAML(t *testing.T) {
	out, err := yaml.Marshal([]MergedRecord{matchedRecord(), {ProviderRecord: *NewProviderRecord("u2")}})
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "matched_on_name: Sunshine LLC")
	assert.Contains(t, text, "total_amount: 1250.5")
	assert.Contains(t, text, "financials: Not Found")
}
