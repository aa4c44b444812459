// Package detect identifies which model profile produced a parsed chat
// document.
package detect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dgallion1/chatmark/internal/profile"
)

// Result is the outcome of a detection run: either exactly one matched
// profile, or unknown. Unknown is not an error; callers decide whether to
// fall back to the generic converter.
type Result struct {
	Profile *profile.Profile
}

// Known reports whether a profile matched.
func (r Result) Known() bool { return r.Profile != nil }

// ModelID returns the matched profile id, or "unknown".
func (r Result) ModelID() string {
	if r.Profile == nil {
		return "unknown"
	}
	return r.Profile.ID
}

// Detect tests profiles in registry order and returns the first whose
// signatures ALL hold. Overlapping profiles are resolved by that order
// (priority, then id), which is deliberate: profiles are expected to be
// mutually exclusive in practice, and the ordering makes the tie explicit
// rather than incidental.
func Detect(doc *goquery.Document, profiles []*profile.Profile) Result {
	for _, p := range profiles {
		if matches(doc, p) {
			return Result{Profile: p}
		}
	}
	return Result{}
}

func matches(doc *goquery.Document, p *profile.Profile) bool {
	for _, sig := range p.Signatures {
		if !signatureHolds(doc, sig) {
			return false
		}
	}
	return true
}

func signatureHolds(doc *goquery.Document, sig profile.Signature) bool {
	sel := doc.Find(sig.Selector)
	if sel.Length() == 0 {
		return false
	}
	if sig.Attr != "" {
		sel = sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
			v, ok := s.Attr(sig.Attr)
			if !ok {
				return false
			}
			return sig.Value == "" || v == sig.Value
		})
		if sel.Length() == 0 {
			return false
		}
	}
	if sig.Contains != "" {
		sel = sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(s.Text(), sig.Contains)
		})
		if sel.Length() == 0 {
			return false
		}
	}
	return true
}
