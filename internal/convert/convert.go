// Package convert walks the DOM subtree selected by a model profile and
// emits conversational turns as Markdown blocks.
package convert

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dgallion1/chatmark/internal/profile"
)

// Extract enumerates the profile's turn containers in document order,
// resolves a role for each, and converts the container contents to Markdown
// blocks. Conversion is best-effort: unknown markup degrades to plain text
// and structural problems come back as Warnings, never as a failure.
//
// If no container matches, Extract returns an empty slice and a
// *NoTurnsError. The error is recoverable; the caller may ask the user to
// verify the copied region.
func Extract(doc *goquery.Document, p *profile.Profile) ([]Turn, []Warning, error) {
	rules := p.ContainerRules()

	roleFor := make(map[*html.Node]string)
	selectors := make([]string, 0, len(rules))
	for _, rule := range rules {
		selectors = append(selectors, rule.Selector)
		role := rule.Role
		doc.Find(rule.Selector).Each(func(_ int, s *goquery.Selection) {
			n := s.Get(0)
			if _, seen := roleFor[n]; !seen {
				roleFor[n] = role
			}
		})
	}

	// Document-order enumeration across all container selectors, keeping
	// only top-level containers: a container nested inside another one is
	// part of its parent's content, not a turn of its own.
	var containers []*goquery.Selection
	doc.Find(strings.Join(selectors, ", ")).Each(func(_ int, s *goquery.Selection) {
		if !hasAncestorIn(s.Get(0), roleFor) {
			containers = append(containers, s)
		}
	})

	var warnings []Warning
	if len(containers) == 0 {
		return nil, warnings, &NoTurnsError{ProfileID: p.ID}
	}

	r := &renderer{
		profile:  p,
		ignored:  nodeSet(doc, p.IgnoreSelectors()),
		code:     nodeSet(doc, p.CodeSelectors()),
		warnings: &warnings,
	}

	var turns []Turn
	for i, sel := range containers {
		role := roleFor[sel.Get(0)]
		if role == profile.RoleAuto {
			role = resolveRole(sel, p, i)
			if role == "" {
				warnings = append(warnings, Warning{
					Code:   WarnRoleUnresolved,
					Detail: "container skipped: no role rule applied",
				})
				continue
			}
		}

		target := sel
		if content, ok := p.Content[role]; ok {
			for _, cs := range content {
				if m := sel.Find(cs); m.Length() > 0 {
					target = m.First()
					break
				}
			}
		}

		turns = append(turns, Turn{Role: role, Blocks: r.blocks(target.Get(0))})
	}

	return turns, warnings, nil
}

// resolveRole decides the role of an "auto" container: role attribute map
// first, then marker child selectors, then position parity.
func resolveRole(sel *goquery.Selection, p *profile.Profile, index int) string {
	if p.RoleAttr != "" {
		if v, ok := sel.Attr(p.RoleAttr); ok {
			if role, ok := p.RoleMap[v]; ok {
				return role
			}
		}
	}
	for _, role := range []string{profile.RoleUser, profile.RoleAssistant, profile.RoleSystem} {
		if marker, ok := p.Markers[role]; ok && marker != "" {
			if sel.Find(marker).Length() > 0 {
				return role
			}
		}
	}
	if p.Parity {
		if index%2 == 0 {
			return profile.RoleUser
		}
		return profile.RoleAssistant
	}
	return ""
}

func hasAncestorIn(n *html.Node, set map[*html.Node]string) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if _, ok := set[p]; ok {
			return true
		}
	}
	return false
}

func nodeSet(doc *goquery.Document, selectors []string) map[*html.Node]bool {
	if len(selectors) == 0 {
		return nil
	}
	set := make(map[*html.Node]bool)
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			set[s.Get(0)] = true
		})
	}
	return set
}
