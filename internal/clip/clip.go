// Package clip normalizes raw clipboard payloads into plain HTML fragments.
package clip

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	startFragment = "<!--StartFragment-->"
	endFragment   = "<!--EndFragment-->"
)

// Fragment extracts the fragment region from a CF_HTML clipboard payload.
//
// Windows clipboard HTML arrives with a key:value header block (Version,
// StartHTML, StartFragment, ...) followed by a full HTML document in which
// the actually-copied region is bracketed by StartFragment/EndFragment
// comments. Anything that doesn't look like CF_HTML is returned unchanged.
func Fragment(raw string) string {
	if !strings.Contains(raw, "StartFragment:") {
		return raw
	}
	start := strings.Index(raw, startFragment)
	if start < 0 {
		return raw
	}
	start += len(startFragment)
	end := strings.LastIndex(raw, endFragment)
	if end < start {
		return raw
	}
	return raw[start:end]
}

// RepairMojibake repairs text whose UTF-8 bytes were misdecoded as a
// single-byte encoding (Latin-1 or CP1252), which turns CJK text into
// sequences like "ã". Re-encoding with the suspected charmap
// recovers the original bytes; the repair is kept only when those bytes are
// valid UTF-8 and surface CJK characters. Text that already contains high
// code points is assumed to be correctly decoded and left alone.
func RepairMojibake(s string) string {
	for _, r := range s {
		if r > 0x1000 {
			return s
		}
	}

	for _, cm := range []*charmap.Charmap{charmap.ISO8859_1, charmap.Windows1252} {
		raw, err := cm.NewEncoder().String(s)
		if err != nil {
			continue
		}
		if !utf8.ValidString(raw) {
			continue
		}
		if hasCJK(raw) {
			return raw
		}
	}
	return s
}

func hasCJK(s string) bool {
	for _, r := range s {
		if r >= 0x3000 {
			return true
		}
	}
	return false
}
