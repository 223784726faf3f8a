package resolve

import (
	"math"
	"math/bits"
	"sort"
	"strings"
)

// processed is a name prepared for scoring: ASCII only, lowercased,
// non-alphanumerics replaced by spaces, tokens sorted.
type processed string

func process(s string) processed {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		case c < 0x80:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	sort.Strings(tokens)
	return processed(strings.Join(tokens, " "))
}

// TokenSortRatio scores two names 0-100 regardless of word order. Both
// names are lowercased, stripped of punctuation and non-ASCII characters,
// and their tokens sorted; the score is the normalized indel similarity of
// the results, rounded half to even.
func TokenSortRatio(a, b string) int {
	return ratio(process(a), process(b))
}

func ratio(a, b processed) int {
	total := len(a) + len(b)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return roundScore(2*lcs(string(a), string(b)), total)
}

// upperBound is the best ratio two strings of these lengths could reach.
func upperBound(la, lb int) int {
	if la == 0 || lb == 0 {
		return 0
	}
	return roundScore(2*min(la, lb), la+lb)
}

func roundScore(num, den int) int {
	return int(math.RoundToEven(100 * float64(num) / float64(den)))
}

// lcs returns the length of the longest common subsequence of a and b.
func lcs(a, b string) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) <= 64 {
		return lcsBits(newPattern(a), b)
	}
	return lcsTable(a, b)
}

// pattern holds per-byte position masks for the bit-parallel LCS.
type pattern struct {
	n    int
	mask [256]uint64
}

func newPattern(s string) *pattern {
	p := &pattern{n: len(s)}
	for i := 0; i < len(s); i++ {
		p.mask[s[i]] |= 1 << uint(i)
	}
	return p
}

// lcsBits is Hyyrö's bit-vector LCS; p must be at most 64 bytes.
func lcsBits(p *pattern, b string) int {
	v := ^uint64(0)
	for i := 0; i < len(b); i++ {
		u := v & p.mask[b[i]]
		v = (v + u) | (v - u)
	}
	if p.n < 64 {
		v |= ^uint64(0) << uint(p.n)
	}
	return bits.OnesCount64(^v)
}

func lcsTable(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
