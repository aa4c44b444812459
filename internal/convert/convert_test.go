package convert

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/dgallion1/chatmark/internal/profile"
)

func parseDoc(t *testing.T, htmlStr string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func classProfile() *profile.Profile {
	return &profile.Profile{
		ID: "test",
		Signatures: []profile.Signature{
			{Selector: "div.user-msg"},
		},
		Rules: []profile.Rule{
			{Selector: "div.user-msg", Role: profile.RoleUser},
			{Selector: "div.ai-msg", Role: profile.RoleAssistant},
		},
	}
}

func TestExtract_TwoTurns(t *testing.T) {
	html := `<div class="user-msg">Hello</div><div class="ai-msg"><p>Hi there</p></div>`
	turns, _, err := Extract(parseDoc(t, html), classProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != profile.RoleUser || turns[0].Markdown() != "Hello" {
		t.Errorf("turn 0: got role %q text %q", turns[0].Role, turns[0].Markdown())
	}
	if turns[1].Role != profile.RoleAssistant || turns[1].Markdown() != "Hi there" {
		t.Errorf("turn 1: got role %q text %q", turns[1].Role, turns[1].Markdown())
	}
}

func TestExtract_PlainTextRoundTrip(t *testing.T) {
	// A container with a single paragraph of plain text comes back as the
	// normalized source text.
	html := `<div class="user-msg">  some
	plain   text  </div>`
	turns, _, err := Extract(parseDoc(t, html), classProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if got := turns[0].Markdown(); got != "some plain text" {
		t.Errorf("expected normalized text, got %q", got)
	}
}

func TestExtract_EmptyContainer(t *testing.T) {
	html := `<div class="user-msg"></div>`
	turns, _, err := Extract(parseDoc(t, html), classProfile())
	if err != nil {
		t.Fatalf("expected no error for empty container, got %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if len(turns[0].Blocks) != 0 {
		t.Errorf("expected empty block sequence, got %d blocks", len(turns[0].Blocks))
	}
}

func TestExtract_NoContainers(t *testing.T) {
	html := `<article>nothing relevant</article>`
	turns, _, err := Extract(parseDoc(t, html), classProfile())
	if len(turns) != 0 {
		t.Errorf("expected no turns, got %d", len(turns))
	}
	var noTurns *NoTurnsError
	if !errors.As(err, &noTurns) {
		t.Fatalf("expected NoTurnsError, got %v", err)
	}
	if noTurns.ProfileID != "test" {
		t.Errorf("expected profile id in error, got %q", noTurns.ProfileID)
	}
}

func TestExtract_TableWithoutHeader(t *testing.T) {
	html := `<div class="ai-msg"><table>
	<tr><td>a</td><td>b</td></tr>
	<tr><td>c</td><td>d</td></tr>
	</table></div>`
	turns, warnings, err := Extract(parseDoc(t, html), classProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}

	found := false
	for _, w := range warnings {
		if w.Code == WarnTableMissingHeader {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s warning, got %v", WarnTableMissingHeader, warnings)
	}

	md := turns[0].Markdown()
	lines := strings.Split(md, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 table lines, got %d:\n%s", len(lines), md)
	}
	if lines[0] != "|  |  |" {
		t.Errorf("expected empty header row, got %q", lines[0])
	}
	if lines[1] != "| --- | --- |" {
		t.Errorf("expected separator row, got %q", lines[1])
	}
	if lines[2] != "| a | b |" {
		t.Errorf("expected first data row, got %q", lines[2])
	}
}

func TestExtract_TableWithHeader(t *testing.T) {
	html := `<div class="ai-msg"><table>
	<thead><tr><th>x</th><th>y</th></tr></thead>
	<tbody><tr><td>1</td><td>2</td></tr></tbody>
	</table></div>`
	turns, warnings, err := Extract(parseDoc(t, html), classProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, w := range warnings {
		if w.Code == WarnTableMissingHeader {
			t.Errorf("unexpected missing-header warning")
		}
	}
	md := turns[0].Markdown()
	want := "| x | y |\n| --- | --- |\n| 1 | 2 |"
	if md != want {
		t.Errorf("table:\nwant %q\ngot  %q", want, md)
	}
}

func TestExtract_Headings(t *testing.T) {
	html := `<div class="ai-msg"><h1>One</h1><h3>Three</h3><div role="heading" aria-level="2">Aria</div></div>`
	turns, _, err := Extract(parseDoc(t, html), classProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	md := turns[0].Markdown()
	for _, want := range []string{"# One", "### Three", "## Aria"} {
		if !strings.Contains(md, want) {
			t.Errorf("expected %q in:\n%s", want, md)
		}
	}
}

func TestExtract_HeadingShift(t *testing.T) {
	p := classProfile()
	p.ShiftHeadings = true
	html := `<div class="ai-msg"><h1>Top</h1><h6>Deep</h6></div>`
	turns, _, err := Extract(parseDoc(t, html), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	md := turns[0].Markdown()
	if !strings.Contains(md, "## Top") {
		t.Errorf("h1 should shift to h2:\n%s", md)
	}
	if !strings.Contains(md, "###### Deep") {
		t.Errorf("h6 should stay h6:\n%s", md)
	}
}

func TestExtract_CodeBlockLanguage(t *testing.T) {
	html := `<div class="ai-msg"><pre><code class="language-go">fmt.Println("hi")</code></pre></div>`
	turns, _, err := Extract(parseDoc(t, html), classProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	md := turns[0].Markdown()
	if !strings.HasPrefix(md, "```go\n") {
		t.Errorf("expected go fence, got:\n%s", md)
	}
	if !strings.Contains(md, `fmt.Println("hi")`) {
		t.Errorf("expected code body preserved, got:\n%s", md)
	}
}

func TestExtract_CodeRule(t *testing.T) {
	// A custom element matched by a code rule renders as a fenced block,
	// without its decoration label leaking into the text.
	p := &profile.Profile{
		ID:         "gem",
		Signatures: []profile.Signature{{Selector: "model-response"}},
		Rules: []profile.Rule{
			{Selector: "model-response", Role: profile.RoleAssistant},
			{Selector: "code-block", Role: profile.RoleCode},
		},
	}
	html := `<model-response><code-block>
	<div class="code-block-decoration"><span>python</span></div>
	<code data-test-id="code-content">print(1)</code>
	</code-block></model-response>`
	turns, _, err := Extract(parseDoc(t, html), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	md := turns[0].Markdown()
	if !strings.Contains(md, "```python\nprint(1)\n```") {
		t.Errorf("expected python fence, got:\n%s", md)
	}
	if strings.Contains(strings.ReplaceAll(md, "```python", ""), "python") {
		t.Errorf("decoration label leaked into output:\n%s", md)
	}
}

func TestExtract_NestedLists(t *testing.T) {
	html := `<div class="ai-msg"><ul>
	<li>first</li>
	<li>second<ol><li>inner</li></ol></li>
	</ul></div>`
	turns, _, err := Extract(parseDoc(t, html), classProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	md := turns[0].Markdown()
	want := "- first\n- second\n  1. inner"
	if md != want {
		t.Errorf("list:\nwant %q\ngot  %q", want, md)
	}
}

func TestExtract_InlineFormatting(t *testing.T) {
	html := `<div class="ai-msg"><p>mix <strong>bold</strong> and <em>italic</em> and <code>x</code> and <a href="https://example.com/a?b=1">link</a></p></div>`
	turns, _, err := Extract(parseDoc(t, html), classProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	md := turns[0].Markdown()
	want := "mix **bold** and *italic* and `x` and [link](https://example.com/a?b=1)"
	if md != want {
		t.Errorf("inline:\nwant %q\ngot  %q", want, md)
	}
}

func TestExtract_IgnoreRuleSkipsSubtree(t *testing.T) {
	p := classProfile()
	p.Rules = append(p.Rules, profile.Rule{Selector: ".toolbar", Role: profile.RoleIgnore})
	html := `<div class="ai-msg">visible<div class="toolbar">Copy <b>everything</b> here</div></div>`
	turns, _, err := Extract(parseDoc(t, html), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	md := turns[0].Markdown()
	if md != "visible" {
		t.Errorf("expected ignored subtree dropped, got %q", md)
	}
}

func TestExtract_UnknownElementFallsBackToText(t *testing.T) {
	html := `<div class="ai-msg"><weird-widget data-x="1">inner text</weird-widget></div>`
	turns, _, err := Extract(parseDoc(t, html), classProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := turns[0].Markdown(); got != "inner text" {
		t.Errorf("expected plain text fallback, got %q", got)
	}
}

func TestExtract_WrapperDivsSeparateParagraphs(t *testing.T) {
	html := `<div class="ai-msg"><div>first block</div><div>second block</div></div>`
	turns, _, err := Extract(parseDoc(t, html), classProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns[0].Blocks) != 2 {
		t.Fatalf("expected 2 paragraph blocks, got %d", len(turns[0].Blocks))
	}
	if got := turns[0].Markdown(); got != "first block\n\nsecond block" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_RoleAttr(t *testing.T) {
	p := &profile.Profile{
		ID:         "chatgpt",
		Signatures: []profile.Signature{{Selector: "div[data-message-author-role]"}},
		Rules:      []profile.Rule{{Selector: "div[data-message-author-role]", Role: profile.RoleAuto}},
		RoleAttr:   "data-message-author-role",
		RoleMap:    map[string]string{"user": profile.RoleUser, "assistant": profile.RoleAssistant},
	}
	html := `<div data-message-author-role="user">q</div><div data-message-author-role="assistant">a</div>`
	turns, _, err := Extract(parseDoc(t, html), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 2 || turns[0].Role != profile.RoleUser || turns[1].Role != profile.RoleAssistant {
		t.Errorf("role attr resolution failed: %+v", turns)
	}
}

func TestExtract_RoleMarkers(t *testing.T) {
	p := &profile.Profile{
		ID:         "aistudio",
		Signatures: []profile.Signature{{Selector: "ms-chat-turn"}},
		Rules:      []profile.Rule{{Selector: "ms-chat-turn", Role: profile.RoleAuto}},
		Markers: map[string]string{
			profile.RoleUser:      ".user-prompt-container",
			profile.RoleAssistant: ".model-prompt-container",
		},
	}
	html := `<ms-chat-turn><div class="user-prompt-container">q</div></ms-chat-turn>
	<ms-chat-turn><div class="model-prompt-container">a</div></ms-chat-turn>`
	turns, _, err := Extract(parseDoc(t, html), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 2 || turns[0].Role != profile.RoleUser || turns[1].Role != profile.RoleAssistant {
		t.Errorf("marker resolution failed: %+v", turns)
	}
}

func TestExtract_RoleParity(t *testing.T) {
	p := &profile.Profile{
		ID:         "pairs",
		Signatures: []profile.Signature{{Selector: ".msg"}},
		Rules:      []profile.Rule{{Selector: ".msg", Role: profile.RoleAuto}},
		Parity:     true,
	}
	html := `<div class="msg">q1</div><div class="msg">a1</div><div class="msg">q2</div>`
	turns, _, err := Extract(parseDoc(t, html), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantRoles := []string{profile.RoleUser, profile.RoleAssistant, profile.RoleUser}
	for i, want := range wantRoles {
		if turns[i].Role != want {
			t.Errorf("turn %d: expected role %s, got %s", i, want, turns[i].Role)
		}
	}
}

func TestExtract_UnresolvedRoleWarnsAndSkips(t *testing.T) {
	p := &profile.Profile{
		ID:         "strict",
		Signatures: []profile.Signature{{Selector: ".msg"}},
		Rules:      []profile.Rule{{Selector: ".msg", Role: profile.RoleAuto}},
		RoleAttr:   "data-role",
		RoleMap:    map[string]string{"u": profile.RoleUser},
	}
	html := `<div class="msg" data-role="u">keep</div><div class="msg" data-role="x">drop</div>`
	turns, warnings, err := Extract(parseDoc(t, html), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	found := false
	for _, w := range warnings {
		if w.Code == WarnRoleUnresolved {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s warning for skipped container", WarnRoleUnresolved)
	}
}

func TestExtract_ContentSelectorNarrows(t *testing.T) {
	p := classProfile()
	p.Content = map[string][]string{
		profile.RoleAssistant: {"div.markdown"},
	}
	html := `<div class="ai-msg"><div class="header-junk">ChatGPT</div><div class="markdown"><p>answer</p></div></div>`
	turns, _, err := Extract(parseDoc(t, html), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := turns[0].Markdown(); got != "answer" {
		t.Errorf("expected content narrowed to div.markdown, got %q", got)
	}
}

func TestExtract_NestedContainerNotDoubleCounted(t *testing.T) {
	p := classProfile()
	html := `<div class="user-msg">outer <div class="user-msg">inner</div></div>`
	turns, _, err := Extract(parseDoc(t, html), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 1 {
		t.Errorf("nested container should not produce its own turn, got %d turns", len(turns))
	}
}

func TestExtract_NoiseRemoval(t *testing.T) {
	p := classProfile()
	p.Noise = []string{"Copy code"}
	html := `<div class="ai-msg"><div>Copy code</div><div>real content</div></div>`
	turns, _, err := Extract(parseDoc(t, html), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := turns[0].Markdown(); got != "real content" {
		t.Errorf("expected noise removed, got %q", got)
	}
}

func TestExtract_Blockquote(t *testing.T) {
	html := `<div class="ai-msg"><blockquote><p>quoted line</p></blockquote></div>`
	turns, _, err := Extract(parseDoc(t, html), classProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := turns[0].Markdown(); got != "> quoted line" {
		t.Errorf("expected blockquote, got %q", got)
	}
}

func TestExtract_ScriptAndStyleSkipped(t *testing.T) {
	html := `<div class="ai-msg">text<script>alert(1)</script><style>.x{}</style></div>`
	turns, _, err := Extract(parseDoc(t, html), classProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := turns[0].Markdown(); got != "text" {
		t.Errorf("expected script/style dropped, got %q", got)
	}
}

func TestCleanNoise(t *testing.T) {
	in := "keep\nthumb_up\nalso keep thumb_up here\n"
	got := CleanNoise(in, []string{"thumb_up"})
	if strings.Contains(got, "thumb_up") {
		t.Errorf("pattern not removed: %q", got)
	}
	if !strings.Contains(got, "keep") || !strings.Contains(got, "also keep") {
		t.Errorf("unrelated text removed: %q", got)
	}
}
