package convert

import (
	"fmt"
	"strings"
)

// BlockKind classifies a content block within a turn.
type BlockKind string

const (
	BlockParagraph BlockKind = "paragraph"
	BlockHeading   BlockKind = "heading"
	BlockCode      BlockKind = "code"
	BlockList      BlockKind = "list"
	BlockTable     BlockKind = "table"
	BlockQuote     BlockKind = "quote"
	BlockRule      BlockKind = "rule"
)

// Block is one rendered content block in Markdown form.
type Block struct {
	Kind     BlockKind
	Markdown string
}

// Turn is one conversational turn: a role plus its content blocks in source
// order.
type Turn struct {
	Role   string
	Blocks []Block
}

// Markdown joins the turn's blocks into a single Markdown fragment.
func (t Turn) Markdown() string {
	parts := make([]string, 0, len(t.Blocks))
	for _, b := range t.Blocks {
		if b.Markdown != "" {
			parts = append(parts, b.Markdown)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Warning is a recoverable conversion problem. Conversion continues with
// best-effort output; warnings are surfaced to the caller.
type Warning struct {
	Code   string
	Detail string
}

func (w Warning) String() string {
	return w.Code + ": " + w.Detail
}

// Warning codes.
const (
	WarnTableMissingHeader = "table-missing-header"
	WarnRoleUnresolved     = "role-unresolved"
)

// NoTurnsError reports that a profile's container selectors matched nothing.
// Recoverable: the caller may tell the user to verify the copied region.
type NoTurnsError struct {
	ProfileID string
}

func (e *NoTurnsError) Error() string {
	return fmt.Sprintf("profile %s: no turn containers found", e.ProfileID)
}
