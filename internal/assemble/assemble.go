// Package assemble combines converted turns into the final Markdown
// document and derives output filenames from a template.
package assemble

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/chatmark/internal/convert"
)

// Metadata describes one extraction run.
type Metadata struct {
	Model     string
	Title     string
	Extracted time.Time
}

// TimestampLayout is the human-readable extraction timestamp format used in
// the front-matter.
const TimestampLayout = "2006-01-02 15:04:05"

var roleLabels = map[string]string{
	"user":      "User",
	"assistant": "AI",
	"ai":        "AI",
	"system":    "System",
}

// Document serializes turns and metadata into the final Markdown string:
// a title heading, a front-matter block, then one numbered, role-labeled
// section per turn. Pure function of its inputs — re-running on the same
// turns and metadata produces byte-identical output.
func Document(turns []convert.Turn, meta Metadata) string {
	var sb strings.Builder

	title := meta.Title
	if title == "" {
		title = "Chat_" + meta.Extracted.Format("20060102_150405")
	}

	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "Model Profile: %s\n", meta.Model)
	fmt.Fprintf(&sb, "Extracted Date: %s\n", meta.Extracted.Format(TimestampLayout))
	sb.WriteString("\n---\n")

	for i, turn := range turns {
		label, ok := roleLabels[turn.Role]
		if !ok {
			label = "AI"
		}
		fmt.Fprintf(&sb, "\n## %d. %s\n", i+1, label)
		if md := turn.Markdown(); md != "" {
			sb.WriteString("\n" + md + "\n")
		}
	}

	return sb.String()
}

var placeholderRE = regexp.MustCompile(`\{[^{}]*\}`)

// Filename expands an output filename template. Recognized placeholders:
// {model}, {date}, {time}, {counter}, {title}, {year}, {month}. Anything
// else passes through verbatim — filenames are advisory, so an unknown
// placeholder is not an error. Layouts control how the timestamp renders.
func Filename(template string, meta Metadata, counter int, layouts TimeLayouts) string {
	layouts.defaults()
	t := meta.Extracted

	return placeholderRE.ReplaceAllStringFunc(template, func(ph string) string {
		switch ph {
		case "{model}", "{ai model}":
			return meta.Model
		case "{date}":
			return t.Format(layouts.Date)
		case "{time}":
			return t.Format(layouts.Time)
		case "{year}":
			return t.Format(layouts.Year)
		case "{month}":
			return t.Format(layouts.Month)
		case "{counter}":
			return strconv.Itoa(counter)
		case "{title}":
			return SanitizeFilename(meta.Title)
		default:
			return ph
		}
	})
}

// TimeLayouts are the Go time layouts used by filename placeholders.
type TimeLayouts struct {
	Time  string
	Date  string
	Year  string
	Month string
}

func (l *TimeLayouts) defaults() {
	if l.Time == "" {
		l.Time = "20060102_150405"
	}
	if l.Date == "" {
		l.Date = "20060102"
	}
	if l.Year == "" {
		l.Year = "2006"
	}
	if l.Month == "" {
		l.Month = "01"
	}
}

var (
	controlRE  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	reservedRE = regexp.MustCompile(`[<>:"/\\|?*#]`)
)

// SanitizeFilename strips characters unsafe in filenames and caps length.
func SanitizeFilename(name string) string {
	name = controlRE.ReplaceAllString(name, "")
	name = reservedRE.ReplaceAllString(name, "_")
	name = strings.NewReplacer("`", "", "*", "").Replace(name)
	name = strings.TrimSpace(name)
	if len(name) > 80 {
		cut := name[:80]
		for !utf8.ValidString(cut) {
			cut = cut[:len(cut)-1]
		}
		name = cut
	}
	return name
}
