// Package config loads the chatmark YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Output OutputConfig `yaml:"output"`
	Clip   ClipConfig   `yaml:"clip"`

	// Date/time formats accept JS-style tokens (yyyy MM dd HH mm ss),
	// converted to Go layouts at load time.
	TimeFormat  string `yaml:"time_format"`
	DateFormat  string `yaml:"date_format"`
	YearFormat  string `yaml:"year_format"`
	MonthFormat string `yaml:"month_format"`

	// Removes lists noise strings deleted from every converted turn, in
	// addition to any profile-level noise patterns.
	Removes []string `yaml:"removes"`

	// ProfilesDir overrides where model profiles are loaded from.
	ProfilesDir string `yaml:"profiles_dir"`
}

// OutputConfig controls the written Markdown file.
type OutputConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	Dir      string `yaml:"dir"`
	Filename string `yaml:"filename"`
	BOM      bool   `yaml:"bom"`
}

// ClipConfig controls the copy-back behavior of the outer wrapper.
type ClipConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// SaveEnabled reports whether the output file should be written.
func (c Config) SaveEnabled() bool {
	return c.Output.Enabled == nil || *c.Output.Enabled
}

// CopyEnabled reports whether the result should be copied back.
func (c Config) CopyEnabled() bool {
	return c.Clip.Enabled == nil || *c.Clip.Enabled
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Output: OutputConfig{
			Dir:      "outputs/chat_logs",
			Filename: "chat_log_{time}_{model}.md",
			BOM:      true,
		},
		TimeFormat:  "yyyyMMdd_HHmmss",
		DateFormat:  "yyyyMMdd",
		YearFormat:  "yyyy",
		MonthFormat: "MM",
		ProfilesDir: "profiles",
	}
}

// Load reads the config file at path over the defaults. A missing file is
// not an error; the defaults apply. Format fields are normalized to Go
// time layouts.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return cfg.normalized(), fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg.normalized(), fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	return cfg.normalized(), nil
}

func (c Config) normalized() Config {
	if c.Output.Dir == "" {
		c.Output.Dir = "outputs/chat_logs"
	}
	if c.Output.Filename == "" {
		c.Output.Filename = "chat_log_{time}_{model}.md"
	}
	if c.ProfilesDir == "" {
		c.ProfilesDir = "profiles"
	}
	c.TimeFormat = ToGoLayout(c.TimeFormat)
	c.DateFormat = ToGoLayout(c.DateFormat)
	c.YearFormat = ToGoLayout(c.YearFormat)
	c.MonthFormat = ToGoLayout(c.MonthFormat)
	return c
}

// jsTokens maps JS-style date tokens to Go reference-time layouts.
var jsTokens = []struct{ js, layout string }{
	{"yyyy", "2006"},
	{"MM", "01"},
	{"dd", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

// ToGoLayout converts a JS-style date format to a Go time layout. Strings
// already in Go layout form pass through unchanged.
func ToGoLayout(format string) string {
	if format == "" {
		return ""
	}
	for _, tok := range jsTokens {
		format = strings.ReplaceAll(format, tok.js, tok.layout)
	}
	return format
}
