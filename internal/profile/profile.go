// Package profile defines the declarative per-model extraction profiles and
// the registry that loads them from disk.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Roles a turn container can be mapped to. RoleAuto defers the decision to
// the profile's role-resolution config (role attribute, markers, parity);
// RoleIgnore drops the element and its descendants; RoleCode forces a fenced
// code block.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleAuto      = "auto"
	RoleIgnore    = "ignore"
	RoleCode      = "code"
)

// Signature is one detection requirement. The selector must match at least
// one node; if Attr is set the node must carry Attr=Value (or just Attr when
// Value is empty); if Contains is set the node's text must contain it.
type Signature struct {
	Selector string `yaml:"selector"`
	Attr     string `yaml:"attr"`
	Value    string `yaml:"value"`
	Contains string `yaml:"contains"`
}

// Rule maps a CSS selector to a semantic role.
type Rule struct {
	Selector string `yaml:"selector"`
	Role     string `yaml:"role"`
}

// Profile describes how to detect and extract one AI model's chat markup.
// Immutable after load.
type Profile struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`

	Signatures []Signature `yaml:"signatures"`
	Rules      []Rule      `yaml:"rules"`

	// Role resolution for rules with role "auto".
	RoleAttr string            `yaml:"role_attr"`
	RoleMap  map[string]string `yaml:"role_map"`
	// Markers maps a role to a child selector whose presence assigns it.
	Markers map[string]string `yaml:"markers"`
	// Parity assigns user/assistant by container position when nothing else
	// decides (even index = user, odd = assistant).
	Parity bool `yaml:"parity"`

	// Content maps a role to preferred content selectors inside a container;
	// the first match narrows the walk to that element.
	Content map[string][]string `yaml:"content"`

	// Noise lines removed from converted output.
	Noise []string `yaml:"noise"`

	// ShiftHeadings demotes source h1-h5 by one level so document headings
	// don't collide with the turn section headers.
	ShiftHeadings bool `yaml:"shift_headings"`

	file string
}

// File reports the path the profile was loaded from (empty for profiles
// constructed in code).
func (p *Profile) File() string { return p.file }

// ContainerRules returns the rules that enumerate turn containers. Ignore
// and code rules apply inside containers, not to the container list itself.
func (p *Profile) ContainerRules() []Rule {
	var out []Rule
	for _, r := range p.Rules {
		if r.Role != RoleIgnore && r.Role != RoleCode {
			out = append(out, r)
		}
	}
	return out
}

// IgnoreSelectors returns the selectors of all ignore rules.
func (p *Profile) IgnoreSelectors() []string {
	var out []string
	for _, r := range p.Rules {
		if r.Role == RoleIgnore {
			out = append(out, r.Selector)
		}
	}
	return out
}

// CodeSelectors returns the selectors of all code rules (elements that
// must render as fenced code blocks regardless of their markup).
func (p *Profile) CodeSelectors() []string {
	var out []string
	for _, r := range p.Rules {
		if r.Role == RoleCode {
			out = append(out, r.Selector)
		}
	}
	return out
}

// ValidationError reports a profile file that failed validation. The load
// skips the file and continues.
type ValidationError struct {
	File   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("profile %s: field %q: %s", e.File, e.Field, e.Reason)
}

var validRoles = map[string]bool{
	RoleUser:      true,
	RoleAssistant: true,
	RoleSystem:    true,
	RoleAuto:      true,
	RoleIgnore:    true,
	RoleCode:      true,
}

func (p *Profile) validate(file string) error {
	if strings.TrimSpace(p.ID) == "" {
		return &ValidationError{File: file, Field: "id", Reason: "missing"}
	}
	if len(p.Signatures) == 0 {
		return &ValidationError{File: file, Field: "signatures", Reason: "at least one required"}
	}
	for i, s := range p.Signatures {
		if strings.TrimSpace(s.Selector) == "" {
			return &ValidationError{File: file, Field: fmt.Sprintf("signatures[%d].selector", i), Reason: "missing"}
		}
	}
	hasContainer := false
	for i, r := range p.Rules {
		if strings.TrimSpace(r.Selector) == "" {
			return &ValidationError{File: file, Field: fmt.Sprintf("rules[%d].selector", i), Reason: "missing"}
		}
		if !validRoles[r.Role] {
			return &ValidationError{File: file, Field: fmt.Sprintf("rules[%d].role", i), Reason: fmt.Sprintf("unknown role %q", r.Role)}
		}
		if r.Role != RoleIgnore && r.Role != RoleCode {
			hasContainer = true
		}
	}
	if !hasContainer {
		return &ValidationError{File: file, Field: "rules", Reason: "at least one turn-container rule required"}
	}
	return nil
}

// Registry holds the loaded profiles in detection priority order.
type Registry struct {
	profiles []*Profile
	byID     map[string]*Profile
}

// Profiles returns the profiles ordered by (priority, id). Lower priority
// values are tried first.
func (r *Registry) Profiles() []*Profile { return r.profiles }

// Get looks up a profile by id.
func (r *Registry) Get(id string) (*Profile, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Len reports the number of loaded profiles.
func (r *Registry) Len() int { return len(r.profiles) }

// LoadDir loads every *.yaml profile in dir. Invalid files are skipped and
// reported in the returned error slice; the registry is still usable with
// whatever loaded cleanly. A missing directory yields an empty registry.
func LoadDir(dir string) (*Registry, []error) {
	reg := New(nil)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return reg, []error{fmt.Errorf("read profiles dir: %w", err)}
	}

	var errs []error
	var loaded []*Profile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		p, err := loadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, p)
	}

	return New(loaded), errs
}

// New builds a registry from in-memory profiles, sorting them into
// detection order. Ties on priority break on id so the order never depends
// on directory listing order.
func New(profiles []*Profile) *Registry {
	sorted := make([]*Profile, len(profiles))
	copy(sorted, profiles)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].ID < sorted[j].ID
	})

	byID := make(map[string]*Profile, len(sorted))
	for _, p := range sorted {
		byID[p.ID] = p
	}
	return &Registry{profiles: sorted, byID: byID}
}

func loadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.validate(filepath.Base(path)); err != nil {
		return nil, err
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	p.file = path
	return &p, nil
}
