package resolve

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenSortRatio(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected int
	}{
		{name: "identical", a: "SUNSHINE DAYCARE", b: "SUNSHINE DAYCARE", expected: 100},
		{name: "word order ignored", a: "SMITH JOHN", b: "john smith", expected: 100},
		{name: "punctuation ignored", a: "O'BRIEN, KATE", b: "KATE O BRIEN", expected: 100},
		{name: "nothing in common", a: "ABC", b: "XYZ", expected: 0},
		{name: "empty side", a: "", b: "ABC", expected: 0},
		{name: "exactly 85", a: "ABCDEFGHIJKLMNOPQRST", b: "ABCDEFGHIJKLMNOPQXYZ", expected: 85},
		{name: "rounds 86.49 down", a: "ABCDEFGHIJKLMNOP", b: "ABCDEFGHIJKLMNOPVWXYZ", expected: 86},
		{name: "half rounds to even", a: "A", b: "ABBBBBBBBBBBBBB", expected: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TokenSortRatio(tt.a, tt.b))
			assert.Equal(t, tt.expected, TokenSortRatio(tt.b, tt.a), "score must be symmetric")
		})
	}
}

func TestLCS_BitParallelMatchesTable(t *testing.T) {
	pairs := [][2]string{
		{"abcbdab", "bdcaba"},
		{"kitten", "sitting"},
		{"aaaa", "aa"},
		{"", "abc"},
		{strings.Repeat("ab", 32), strings.Repeat("ba", 40)},
		{"little learners academy", "academy little learners"},
	}
	for _, p := range pairs {
		a, b := p[0], p[1]
		want := lcsTable(a, b)
		if len(a) <= 64 {
			assert.Equal(t, want, lcsBits(newPattern(a), b), "%q vs %q", a, b)
		}
		assert.Equal(t, want, lcs(a, b), "%q vs %q", a, b)
	}
}

func TestLCS_LongStrings(t *testing.T) {
	a := strings.Repeat("abc", 30)
	b := strings.Repeat("abc", 25) + "xyz"
	assert.Equal(t, 75, lcs(a, b))
}
