// Package resolve canonicalizes provider and vendor names and links them with
// a token-order-insensitive fuzzy score.
package resolve

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// entitySuffixes lists the legal and licensing suffixes removed during
// normalization. Each is matched as a whole token preceded by whitespace.
var entitySuffixes = []string{
	"LLC",
	"INC",
	"DBA",
	"FAMILY CHILD CARE",
	"ADULT FAMILY HOME",
}

var suffixRes = compileSuffixes(entitySuffixes)

// leadingNoise matches the run of symbols and whitespace at the start of a
// name. A "#12 " listing marker is part of the run; any other digit stops it.
var leadingNoise = regexp.MustCompile(`^(?:#\d+[\s\p{Zs}]+|[#*\-.\s\p{Zs}])+`)

// ownerBusiness splits "Owner (Business)" style provider names.
var ownerBusiness = regexp.MustCompile(`(.*)\((.*)\)`)

func compileSuffixes(suffixes []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(suffixes))
	for i, s := range suffixes {
		out[i] = regexp.MustCompile(`[\s\p{Zs}]` + regexp.QuoteMeta(s) + `\b`)
	}
	return out
}

// Normalize turns a free-text vendor or provider name into a canonical key:
//  1. Uppercase (full Unicode case mapping)
//  2. Strip the leading run of #, *, -, . and whitespace
//  3. Remove entity suffix tokens (LLC, INC, DBA, ...)
//  4. Trim surrounding whitespace
//
// Digits inside the name are kept, so "ABC 1" and "ABC 2" stay distinct.
func Normalize(name string) string {
	if name == "" {
		return ""
	}

	name = cases.Upper(language.Und).String(name)
	name = leadingNoise.ReplaceAllString(name, "")

	for _, re := range suffixRes {
		name = re.ReplaceAllString(name, "")
	}

	return strings.TrimSpace(name)
}

// CandidateKeys returns the canonical keys a provider name may appear under
// in the ledger. "Owner (Business)" yields the owner key then the business
// key; any other name yields a single key.
func CandidateKeys(name string) []string {
	if name == "" {
		return nil
	}

	if m := ownerBusiness.FindStringSubmatch(name); m != nil {
		return []string{Normalize(m[1]), Normalize(m[2])}
	}
	return []string{Normalize(name)}
}
