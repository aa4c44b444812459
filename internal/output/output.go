// Package output writes assembled Markdown documents to disk.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/chatmark/internal/assemble"
	"github.com/dgallion1/chatmark/internal/config"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Writer resolves the output path from the configured templates and writes
// the document.
type Writer struct {
	cfg config.Config
}

// NewWriter creates a Writer for the given configuration.
func NewWriter(cfg config.Config) *Writer {
	return &Writer{cfg: cfg}
}

// Write expands the directory and filename templates, resolves {counter}
// against existing files, and writes the document. Returns the written
// path.
func (w *Writer) Write(markdown string, meta assemble.Metadata) (string, error) {
	layouts := assemble.TimeLayouts{
		Time:  w.cfg.TimeFormat,
		Date:  w.cfg.DateFormat,
		Year:  w.cfg.YearFormat,
		Month: w.cfg.MonthFormat,
	}

	dir := w.cfg.Output.Dir
	dir = strings.ReplaceAll(dir, "{year}", meta.Extracted.Format(layouts.Year))
	dir = strings.ReplaceAll(dir, "{month}", meta.Extracted.Format(layouts.Month))
	dir = strings.ReplaceAll(dir, "{date}", meta.Extracted.Format(layouts.Date))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := w.resolvePath(dir, meta, layouts)

	data := []byte(markdown)
	if w.cfg.Output.BOM {
		data = append(append([]byte{}, utf8BOM...), data...)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	return path, nil
}

// resolvePath picks the first {counter} value whose filename doesn't exist
// yet. Templates without {counter} resolve directly (and overwrite).
func (w *Writer) resolvePath(dir string, meta assemble.Metadata, layouts assemble.TimeLayouts) string {
	tmpl := w.cfg.Output.Filename
	if !strings.Contains(tmpl, "{counter}") {
		return filepath.Join(dir, assemble.Filename(tmpl, meta, 0, layouts))
	}
	for counter := 1; ; counter++ {
		path := filepath.Join(dir, assemble.Filename(tmpl, meta, counter, layouts))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}
