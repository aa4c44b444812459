// Package pipeline orchestrates one extraction run: clipboard payload
// normalization, detection, conversion, and assembly.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dgallion1/chatmark/internal/assemble"
	"github.com/dgallion1/chatmark/internal/clip"
	"github.com/dgallion1/chatmark/internal/config"
	"github.com/dgallion1/chatmark/internal/convert"
	"github.com/dgallion1/chatmark/internal/detect"
	"github.com/dgallion1/chatmark/internal/profile"
)

// Result is the outcome of one extraction run.
type Result struct {
	Model     string
	Title     string
	Markdown  string
	TurnCount int
	Extracted time.Time
	Warnings  []convert.Warning
	// Unknown is set when no model profile matched and the generic
	// converter produced the result.
	Unknown bool
}

// Metadata returns the assembler metadata the result was built with, so
// callers derive the output filename from the same timestamp the document
// front-matter carries.
func (r *Result) Metadata() assemble.Metadata {
	return assemble.Metadata{Model: r.Model, Title: r.Title, Extracted: r.Extracted}
}

// Pipeline runs extractions. One run processes one payload to completion;
// there is no shared mutable state between runs.
type Pipeline struct {
	reg *profile.Registry
	cfg config.Config
	log *slog.Logger
	now func() time.Time
}

// New creates a Pipeline.
func New(reg *profile.Registry, cfg config.Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{reg: reg, cfg: cfg, log: log, now: time.Now}
}

// Run converts one raw clipboard payload into a Markdown document. Nothing
// in the conversion path is fatal: unknown models fall back to the generic
// converter, and structural problems surface as warnings on the Result.
// An error is returned only when the input is empty or unparseable and no
// document can be produced at all.
func (p *Pipeline) Run(raw string) (*Result, error) {
	raw = clip.RepairMojibake(raw)
	raw = clip.Fragment(raw)
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("input is empty")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	det := detect.Detect(doc, p.reg.Profiles())
	if det.Known() {
		p.log.Debug("profile detected", "model", det.ModelID())
	} else {
		p.log.Debug("no profile matched, using generic conversion")
	}

	var turns []convert.Turn
	var warnings []convert.Warning
	unknown := !det.Known()

	if det.Known() {
		turns, warnings, err = convert.Extract(doc, det.Profile)
		var noTurns *convert.NoTurnsError
		if errors.As(err, &noTurns) {
			p.log.Warn("profile matched but no turns found, falling back",
				"model", det.ModelID())
			unknown = true
		} else if err != nil {
			return nil, err
		}
	}

	if unknown {
		var genWarnings []convert.Warning
		turns, genWarnings, err = convert.Generic(raw)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, genWarnings...)
	}

	if len(p.cfg.Removes) > 0 {
		turns = applyRemoves(turns, p.cfg.Removes)
	}

	meta := assemble.Metadata{
		Model:     det.ModelID(),
		Title:     deriveTitle(doc, turns),
		Extracted: p.now(),
	}

	return &Result{
		Model:     meta.Model,
		Title:     meta.Title,
		Markdown:  assemble.Document(turns, meta),
		TurnCount: len(turns),
		Extracted: meta.Extracted,
		Warnings:  warnings,
		Unknown:   unknown,
	}, nil
}

func applyRemoves(turns []convert.Turn, removes []string) []convert.Turn {
	for i := range turns {
		blocks := turns[i].Blocks[:0]
		for _, b := range turns[i].Blocks {
			if b.Kind != convert.BlockCode {
				b.Markdown = strings.TrimSpace(convert.CleanNoise(b.Markdown, removes))
			}
			if b.Markdown != "" {
				blocks = append(blocks, b)
			}
		}
		turns[i].Blocks = blocks
	}
	return turns
}

// deriveTitle prefers the page <title>, then the opening line of the first
// user turn, capped the way chat exports usually truncate.
func deriveTitle(doc *goquery.Document, turns []convert.Turn) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	for _, t := range turns {
		if t.Role != profile.RoleUser {
			continue
		}
		text := strings.TrimSpace(t.Markdown())
		if text == "" {
			continue
		}
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[:i]
		}
		return truncateRunes(strings.TrimSpace(text), 40)
	}
	return ""
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
