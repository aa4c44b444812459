package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the chatmark version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("chatmark", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
