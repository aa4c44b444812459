package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/dgallion1/chatmark/internal/config"
	"github.com/dgallion1/chatmark/internal/lockfile"
	"github.com/dgallion1/chatmark/internal/output"
	"github.com/dgallion1/chatmark/internal/pipeline"
	"github.com/dgallion1/chatmark/internal/profile"
)

var (
	flagInput  string
	flagB64    bool
	flagNoSave bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Convert chat HTML from stdin or a file into a Markdown log",
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&flagInput, "input", "", "read the payload from a file instead of stdin")
	extractCmd.Flags().BoolVar(&flagB64, "b64", false, "input is Base64-encoded raw clipboard data")
	extractCmd.Flags().BoolVar(&flagNoSave, "no-save", false, "print the Markdown instead of writing a file")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		log.Warn("config load failed, using defaults", "error", err)
	}

	// File input is the replay/test path; only live stdin runs take the
	// single-instance lock.
	if flagInput == "" {
		release, ok, err := lockfile.Acquire("chatmark")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("another chatmark instance is already running")
		}
		defer release()
	}

	raw, err := readInput()
	if err != nil {
		return err
	}

	reg, loadErrs := profile.LoadDir(cfg.ProfilesDir)
	for _, e := range loadErrs {
		log.Warn("profile skipped", "error", e)
	}
	if reg.Len() == 0 {
		log.Warn("no model profiles loaded; only generic conversion is available",
			"dir", cfg.ProfilesDir)
	}

	res, err := pipeline.New(reg, cfg, log).Run(raw)
	if err != nil {
		return err
	}

	if res.Unknown {
		log.Info("no model profile matched; used generic conversion")
	}
	for _, w := range res.Warnings {
		log.Warn("conversion warning", "code", w.Code, "detail", w.Detail)
	}

	if flagNoSave || !cfg.SaveEnabled() {
		fmt.Print(res.Markdown)
		return nil
	}

	path, err := output.NewWriter(cfg).Write(res.Markdown, res.Metadata())
	if err != nil {
		return err
	}

	fmt.Printf("Extracted %d turns (%s)\n", res.TurnCount, res.Model)
	fmt.Printf("Saved to: %s\n", path)
	return nil
}

func readInput() (string, error) {
	var data []byte
	var err error
	if flagInput != "" {
		data, err = os.ReadFile(flagInput)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
	} else {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
	}

	text := string(data)
	if flagB64 {
		compact := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, text)
		decoded, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			return "", fmt.Errorf("decode base64 input: %w", err)
		}
		text = string(decoded)
	}

	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return text, nil
}
