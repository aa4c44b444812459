package convert

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/chatmark/internal/profile"
)

// Boilerplate elements never worth converting, descendants included.
var skipTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Button:   true,
	atom.Nav:      true,
	atom.Aside:    true,
}

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	spaceRunRE   = regexp.MustCompile(`[ \t]{2,}`)
	saidLineRE   = regexp.MustCompile(`(?mi)^\s*.+ said\s*$`)
	blankLineRE  = regexp.MustCompile(`(?m)^[ \t]+$`)
	multiBlankRE = regexp.MustCompile(`\n{3,}`)
)

type renderer struct {
	profile  *profile.Profile
	ignored  map[*html.Node]bool
	code     map[*html.Node]bool
	warnings *[]Warning
}

// blockBuilder accumulates blocks, merging consecutive inline/text content
// into a single paragraph until a block-level element flushes it.
type blockBuilder struct {
	blocks []Block
	para   strings.Builder
}

func (b *blockBuilder) inline(s string) {
	b.para.WriteString(s)
}

func (b *blockBuilder) flush() {
	text := strings.TrimSpace(spaceRunRE.ReplaceAllString(b.para.String(), " "))
	b.para.Reset()
	if text != "" {
		b.blocks = append(b.blocks, Block{Kind: BlockParagraph, Markdown: text})
	}
}

func (b *blockBuilder) add(kind BlockKind, md string) {
	b.flush()
	if strings.TrimSpace(md) != "" {
		b.blocks = append(b.blocks, Block{Kind: kind, Markdown: md})
	}
}

// blocks converts one turn container's children into Markdown blocks.
func (r *renderer) blocks(container *html.Node) []Block {
	b := &blockBuilder{}
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c, b)
	}
	b.flush()

	out := make([]Block, 0, len(b.blocks))
	for _, blk := range b.blocks {
		if blk.Kind != BlockCode {
			blk.Markdown = r.clean(blk.Markdown)
		}
		if strings.TrimSpace(blk.Markdown) == "" {
			continue
		}
		out = append(out, blk)
	}
	return out
}

func (r *renderer) skip(n *html.Node) bool {
	if n.Type == html.CommentNode {
		return true
	}
	if n.Type == html.ElementNode {
		if skipTags[n.DataAtom] {
			return true
		}
		if r.ignored[n] {
			return true
		}
	}
	return false
}

// walk dispatches one node. Block-level handlers flush the paragraph under
// construction; inline handlers append to it. The default branch is
// deliberate: any element without a mapping contributes its text content as
// plain text so conversion never fails outright on unexpected markup.
func (r *renderer) walk(n *html.Node, b *blockBuilder) {
	if r.skip(n) {
		return
	}

	if n.Type == html.TextNode {
		b.inline(whitespaceRE.ReplaceAllString(n.Data, " "))
		return
	}
	if n.Type != html.ElementNode {
		return
	}

	if r.code[n] {
		b.add(BlockCode, r.codeContainer(n))
		return
	}

	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		b.add(BlockHeading, r.heading(int(n.Data[1]-'0'), n))

	case atom.P:
		b.flush()
		b.inline(r.inlineContent(n))
		b.flush()

	case atom.Pre:
		b.add(BlockCode, r.preBlock(n))

	case atom.Ul, atom.Ol:
		b.add(BlockList, r.list(n, 0))

	case atom.Table:
		b.add(BlockTable, r.table(n))

	case atom.Blockquote:
		b.add(BlockQuote, r.quote(n))

	case atom.Hr:
		b.add(BlockRule, "---")

	case atom.Br:
		b.inline("\n")

	case atom.B, atom.Strong, atom.I, atom.Em, atom.Code, atom.A,
		atom.Span, atom.U, atom.S, atom.Del, atom.Mark, atom.Sub, atom.Sup:
		b.inline(r.inlineNode(n))

	default:
		if lvl := ariaHeadingLevel(n); lvl > 0 {
			b.add(BlockHeading, r.heading(lvl, n))
			return
		}
		// Wrapper elements (div, section, custom tags) are transparent but
		// block-level: sibling wrappers must not merge into one paragraph.
		b.flush()
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			r.walk(c, b)
		}
		b.flush()
	}
}

func (r *renderer) heading(level int, n *html.Node) string {
	if r.profile != nil && r.profile.ShiftHeadings && level < 6 {
		level++
	}
	text := strings.TrimSpace(r.inlineContent(n))
	if text == "" {
		return ""
	}
	return strings.Repeat("#", level) + " " + text
}

// ariaHeadingLevel recognizes div[role=heading] with aria-level, which some
// chat UIs use instead of h-tags. Returns 0 for non-headings.
func ariaHeadingLevel(n *html.Node) int {
	if attrVal(n, "role") != "heading" {
		return 0
	}
	level := 3
	if v := attrVal(n, "aria-level"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			level = parsed
		}
	}
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return level
}

// inlineContent renders the children of n as inline Markdown.
func (r *renderer) inlineContent(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if r.skip(c) {
			continue
		}
		if c.Type == html.TextNode {
			sb.WriteString(whitespaceRE.ReplaceAllString(c.Data, " "))
			continue
		}
		if c.Type == html.ElementNode {
			sb.WriteString(r.inlineNode(c))
		}
	}
	return sb.String()
}

// inlineNode renders a single element in inline context.
func (r *renderer) inlineNode(n *html.Node) string {
	if r.skip(n) {
		return ""
	}
	content := strings.TrimSpace(r.inlineContent(n))

	switch n.DataAtom {
	case atom.B, atom.Strong:
		if content == "" {
			return ""
		}
		return "**" + content + "**"
	case atom.I, atom.Em:
		if content == "" {
			return ""
		}
		return "*" + content + "*"
	case atom.Code:
		if content == "" {
			return ""
		}
		return "`" + content + "`"
	case atom.A:
		href := attrVal(n, "href")
		if content == "" {
			content = href
		}
		if href == "" {
			return content
		}
		// Link targets pass through verbatim; no URL validation.
		return "[" + content + "](" + href + ")"
	case atom.Br:
		return "\n"
	default:
		return r.inlineContent(n)
	}
}

// preBlock renders a <pre> as a fenced code block, sniffing the language
// from a language-* class on the inner <code> when present.
func (r *renderer) preBlock(n *html.Node) string {
	lang := ""
	if code := findTag(n, atom.Code); code != nil {
		lang = languageClass(code)
	}
	if lang == "" {
		lang = languageClass(n)
	}
	return fence(lang, rawText(n))
}

// codeContainer renders an element matched by a code rule (e.g. Gemini's
// <code-block> custom element) as a fenced block. The language comes from a
// language-* class anywhere in the subtree, or from the text of a
// *-decoration header span; the code body prefers an explicit
// data-test-id="code-content" node, then <code>, then the whole subtree.
func (r *renderer) codeContainer(n *html.Node) string {
	lang := languageClassDeep(n)
	if lang == "" {
		if dec := findClassContains(n, "decoration"); dec != nil {
			lang = strings.TrimSpace(whitespaceRE.ReplaceAllString(textContent(dec), " "))
		}
	}

	body := findAttrNode(n, "data-test-id", "code-content")
	if body == nil {
		body = findTag(n, atom.Code)
	}
	if body == nil {
		body = n
	}
	return fence(lang, rawText(body))
}

func fence(lang, code string) string {
	code = strings.TrimRight(code, "\n")
	code = strings.TrimPrefix(code, "\n")
	if strings.TrimSpace(code) == "" {
		return ""
	}
	return "```" + lang + "\n" + code + "\n```"
}

// list renders ul/ol with nesting preserved via indentation.
func (r *renderer) list(n *html.Node, depth int) string {
	ordered := n.DataAtom == atom.Ol
	indent := strings.Repeat("  ", depth)

	var lines []string
	idx := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			continue
		}
		idx++

		var item strings.Builder
		var nested []string
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			if gc.Type == html.ElementNode && (gc.DataAtom == atom.Ul || gc.DataAtom == atom.Ol) {
				if sub := r.list(gc, depth+1); sub != "" {
					nested = append(nested, sub)
				}
				continue
			}
			if r.skip(gc) {
				continue
			}
			if gc.Type == html.TextNode {
				item.WriteString(whitespaceRE.ReplaceAllString(gc.Data, " "))
			} else if gc.Type == html.ElementNode {
				item.WriteString(r.inlineNode(gc))
			}
		}

		prefix := "-"
		if ordered {
			prefix = strconv.Itoa(idx) + "."
		}
		lines = append(lines, indent+prefix+" "+strings.TrimSpace(item.String()))
		lines = append(lines, nested...)
	}
	return strings.Join(lines, "\n")
}

// table renders a pipe table. A table without a header row (no <thead>, no
// <th> cells in the first row) gets an empty header row plus a Warning;
// best-effort rendering, never a failure.
func (r *renderer) table(n *html.Node) string {
	var rows [][]string
	hasHeader := false

	var collectRows func(*html.Node)
	collectRows = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Tr:
				var cells []string
				th := false
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type != html.ElementNode {
						continue
					}
					if cell.DataAtom == atom.Th {
						th = true
					}
					if cell.DataAtom == atom.Th || cell.DataAtom == atom.Td {
						text := strings.TrimSpace(r.inlineContent(cell))
						cells = append(cells, strings.ReplaceAll(text, "|", `\|`))
					}
				}
				if len(cells) > 0 {
					if len(rows) == 0 && (th || node.DataAtom == atom.Thead) {
						hasHeader = true
					}
					rows = append(rows, cells)
				}
			case atom.Thead, atom.Tbody, atom.Tfoot:
				collectRows(c)
			}
		}
	}
	collectRows(n)

	if len(rows) == 0 {
		return ""
	}

	cols := len(rows[0])
	var out []string
	if !hasHeader {
		r.warn(WarnTableMissingHeader, "table has no header row; rendered with an empty one")
		out = append(out, pipeRow(make([]string, cols)))
	} else {
		out = append(out, pipeRow(rows[0]))
		rows = rows[1:]
	}
	sep := make([]string, cols)
	for i := range sep {
		sep[i] = "---"
	}
	out = append(out, pipeRow(sep))
	for _, row := range rows {
		out = append(out, pipeRow(row))
	}
	return strings.Join(out, "\n")
}

func pipeRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

// quote renders a blockquote by converting its children and prefixing each
// line.
func (r *renderer) quote(n *html.Node) string {
	inner := &blockBuilder{}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c, inner)
	}
	inner.flush()

	var parts []string
	for _, blk := range inner.blocks {
		parts = append(parts, blk.Markdown)
	}
	content := strings.Join(parts, "\n\n")
	if content == "" {
		return ""
	}
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

func (r *renderer) warn(code, detail string) {
	if r.warnings != nil {
		*r.warnings = append(*r.warnings, Warning{Code: code, Detail: detail})
	}
}

// clean applies noise removal and whitespace tidying to a rendered block.
func (r *renderer) clean(text string) string {
	var noise []string
	if r.profile != nil {
		noise = r.profile.Noise
	}
	text = CleanNoise(text, noise)
	text = saidLineRE.ReplaceAllString(text, "")
	text = blankLineRE.ReplaceAllString(text, "")
	text = multiBlankRE.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// CleanNoise removes noise patterns: lines consisting only of a pattern are
// dropped, and remaining occurrences are cut out of the text.
func CleanNoise(text string, patterns []string) string {
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lineRE := regexp.MustCompile(fmt.Sprintf(`(?mi)^\s*%s\s*$`, regexp.QuoteMeta(p)))
		text = lineRE.ReplaceAllString(text, "")
		text = strings.ReplaceAll(text, p, "")
	}
	return text
}

// --- node helpers ---

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent extracts all text from a subtree without formatting.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// rawText extracts text preserving whitespace, for code blocks.
func rawText(n *html.Node) string {
	return textContent(n)
}

func findTag(n *html.Node, tag atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTag(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func findAttrNode(n *html.Node, key, val string) *html.Node {
	if n.Type == html.ElementNode && attrVal(n, key) == val {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findAttrNode(c, key, val); found != nil {
			return found
		}
	}
	return nil
}

func findClassContains(n *html.Node, substr string) *html.Node {
	if n.Type == html.ElementNode && strings.Contains(attrVal(n, "class"), substr) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findClassContains(c, substr); found != nil {
			return found
		}
	}
	return nil
}

// languageClass reads a language-* class directly on the node.
func languageClass(n *html.Node) string {
	for _, cls := range strings.Fields(attrVal(n, "class")) {
		if lang, ok := strings.CutPrefix(cls, "language-"); ok {
			return lang
		}
	}
	return ""
}

// languageClassDeep searches the subtree for a language-* class.
func languageClassDeep(n *html.Node) string {
	if n.Type == html.ElementNode {
		if lang := languageClass(n); lang != "" {
			return lang
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if lang := languageClassDeep(c); lang != "" {
			return lang
		}
	}
	return ""
}
