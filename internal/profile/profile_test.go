package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
}

const validProfile = `
id: chatgpt
name: ChatGPT
priority: 10
signatures:
  - selector: "div[data-message-author-role]"
rules:
  - selector: "div[data-message-author-role]"
    role: auto
role_attr: data-message-author-role
role_map:
  user: user
  assistant: assistant
`

func TestLoadDir_Valid(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "chatgpt.yaml", validProfile)

	reg, errs := LoadDir(dir)
	if len(errs) != 0 {
		t.Fatalf("unexpected load errors: %v", errs)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 profile, got %d", reg.Len())
	}

	p, ok := reg.Get("chatgpt")
	if !ok {
		t.Fatal("expected chatgpt profile")
	}
	if p.Name != "ChatGPT" || p.Priority != 10 {
		t.Errorf("unexpected profile fields: %+v", p)
	}
	if p.RoleMap["assistant"] != RoleAssistant {
		t.Errorf("role map not loaded: %v", p.RoleMap)
	}
	if p.File() == "" {
		t.Error("expected source file recorded")
	}
}

func TestLoadDir_MissingID(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "broken.yaml", `
name: Broken
signatures:
  - selector: "div"
rules:
  - selector: "div"
    role: user
`)

	reg, errs := LoadDir(dir)
	if reg.Len() != 0 {
		t.Errorf("invalid profile should not load")
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	var verr *ValidationError
	if !errors.As(errs[0], &verr) {
		t.Fatalf("expected ValidationError, got %T", errs[0])
	}
	if verr.File != "broken.yaml" || verr.Field != "id" {
		t.Errorf("error should name file and field, got %+v", verr)
	}
}

func TestLoadDir_NoSignatures(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "nosig.yaml", `
id: nosig
rules:
  - selector: "div"
    role: user
`)

	_, errs := LoadDir(dir)
	var verr *ValidationError
	if len(errs) != 1 || !errors.As(errs[0], &verr) {
		t.Fatalf("expected one ValidationError, got %v", errs)
	}
	if verr.Field != "signatures" {
		t.Errorf("expected signatures field, got %q", verr.Field)
	}
}

func TestLoadDir_OnlyIgnoreRules(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "ignoreonly.yaml", `
id: ignoreonly
signatures:
  - selector: "div"
rules:
  - selector: ".junk"
    role: ignore
`)

	_, errs := LoadDir(dir)
	var verr *ValidationError
	if len(errs) != 1 || !errors.As(errs[0], &verr) {
		t.Fatalf("expected one ValidationError, got %v", errs)
	}
	if verr.Field != "rules" {
		t.Errorf("expected rules field, got %q", verr.Field)
	}
}

func TestLoadDir_BadRole(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "badrole.yaml", `
id: badrole
signatures:
  - selector: "div"
rules:
  - selector: "div"
    role: narrator
`)

	_, errs := LoadDir(dir)
	var verr *ValidationError
	if len(errs) != 1 || !errors.As(errs[0], &verr) {
		t.Fatalf("expected one ValidationError, got %v", errs)
	}
	if verr.Field != "rules[0].role" {
		t.Errorf("expected rules[0].role field, got %q", verr.Field)
	}
}

func TestLoadDir_PartialFailure(t *testing.T) {
	// One bad file must not take down the rest of the load.
	dir := t.TempDir()
	writeProfile(t, dir, "good.yaml", validProfile)
	writeProfile(t, dir, "bad.yaml", `id: ""`)

	reg, errs := LoadDir(dir)
	if reg.Len() != 1 {
		t.Errorf("expected the valid profile to load, got %d", reg.Len())
	}
	if len(errs) != 1 {
		t.Errorf("expected 1 error, got %d: %v", len(errs), errs)
	}
}

func TestLoadDir_MissingDir(t *testing.T) {
	reg, errs := LoadDir(filepath.Join(t.TempDir(), "nope"))
	if len(errs) != 0 {
		t.Errorf("missing dir should not error: %v", errs)
	}
	if reg.Len() != 0 {
		t.Errorf("expected empty registry")
	}
}

func TestRegistry_PriorityOrder(t *testing.T) {
	reg := New([]*Profile{
		{ID: "zeta", Priority: 10},
		{ID: "alpha", Priority: 20},
		{ID: "beta", Priority: 10},
	})

	got := reg.Profiles()
	want := []string{"beta", "zeta", "alpha"}
	for i, w := range want {
		if got[i].ID != w {
			t.Errorf("position %d: expected %s, got %s", i, w, got[i].ID)
		}
	}
}

func TestProfile_RuleAccessors(t *testing.T) {
	p := &Profile{Rules: []Rule{
		{Selector: ".user", Role: RoleUser},
		{Selector: ".junk", Role: RoleIgnore},
		{Selector: "code-block", Role: RoleCode},
	}}

	if got := p.ContainerRules(); len(got) != 1 || got[0].Selector != ".user" {
		t.Errorf("ContainerRules: %v", got)
	}
	if got := p.IgnoreSelectors(); len(got) != 1 || got[0] != ".junk" {
		t.Errorf("IgnoreSelectors: %v", got)
	}
	if got := p.CodeSelectors(); len(got) != 1 || got[0] != "code-block" {
		t.Errorf("CodeSelectors: %v", got)
	}
}
