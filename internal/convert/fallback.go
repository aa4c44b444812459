package convert

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// Speaker header lines found in pasted conversations ("You said",
// "ChatGPT said", "## User", "User:", ...).
var (
	userHeaderRE = regexp.MustCompile(`(?i)^(?:#+\s*)?(?:you|user)(?: said)?:?\s*$`)
	aiHeaderRE   = regexp.MustCompile(`(?i)^(?:#+\s*)?(?:gemini|chatgpt|claude|ai)(?: said)?:?\s*$`)
	htmlTagRE    = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
)

func newGenericConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
}

// Generic converts content for which no model profile matched. HTML input
// goes through a general-purpose HTML-to-Markdown conversion; the result
// (or plain-text input) is then split into turns on speaker header lines.
// When no speaker structure is found, the whole content becomes a single
// user turn, so the pipeline still produces a document.
func Generic(raw string) ([]Turn, []Warning, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, nil, &NoTurnsError{ProfileID: "generic"}
	}

	if htmlTagRE.MatchString(text) {
		md, err := newGenericConverter().ConvertString(text)
		if err != nil {
			return nil, nil, fmt.Errorf("generic conversion: %w", err)
		}
		text = strings.TrimSpace(md)
		if text == "" {
			return nil, nil, &NoTurnsError{ProfileID: "generic"}
		}
	}

	turns := splitSpeakerText(text)
	if len(turns) == 0 {
		turns = []Turn{{
			Role:   "user",
			Blocks: []Block{{Kind: BlockParagraph, Markdown: text}},
		}}
	}
	return turns, nil, nil
}

// splitSpeakerText splits text into turns on speaker header lines. Returns
// nil when no header line is present.
func splitSpeakerText(text string) []Turn {
	var turns []Turn
	role := ""
	var lines []string

	flush := func() {
		if role == "" {
			return
		}
		body := strings.TrimSpace(strings.Join(lines, "\n"))
		if body != "" {
			turns = append(turns, Turn{
				Role:   role,
				Blocks: []Block{{Kind: BlockParagraph, Markdown: body}},
			})
		}
		lines = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case userHeaderRE.MatchString(trimmed):
			flush()
			role = "user"
		case aiHeaderRE.MatchString(trimmed):
			flush()
			role = "assistant"
		case role != "":
			lines = append(lines, line)
		}
	}
	flush()
	return turns
}
