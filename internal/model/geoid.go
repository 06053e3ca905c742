// Package model holds the domain types shared across pipeline stages and the
// classification tables other components depend on.
package model

import "strings"

// GEOIDWidth is the canonical census tract identifier width
// (2 state + 3 county + 6 tract digits).
const GEOIDWidth = 11

// NormalizeGEOID converts a tract identifier in any of the representations
// seen in source data to the canonical fixed-width zero-padded string:
//
//	42101000100       -> "42101000100"
//	"42101000100.0"   -> "42101000100"
//	"1000100"         -> "00001000100"
//	"0042101000100"   -> "42101000100"
//
// Every join key must pass through here at the loading boundary; joins on
// un-normalized identifiers silently drop rows.
func NormalizeGEOID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	// Strip a trailing decimal suffix left over from float coercion.
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return ""
	}
	// Over-padded exports shed leading zeros down to the canonical width.
	for len(s) > GEOIDWidth && s[0] == '0' {
		s = s[1:]
	}
	if len(s) < GEOIDWidth {
		s = strings.Repeat("0", GEOIDWidth-len(s)) + s
	}
	return s
}
