// Command chatmark converts AI-chat HTML into Markdown chat logs. The
// platform wrapper captures the clipboard and feeds the payload in on
// stdin; chatmark detects the model, converts the conversation, and writes
// the result.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:           "chatmark",
	Short:         "Extract AI chat conversations from clipboard HTML into Markdown",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "show debug information")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		newLogger().Error("command failed", "error", err)
		os.Exit(1)
	}
}
