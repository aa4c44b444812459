package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/chatmark/internal/config"
	"github.com/dgallion1/chatmark/internal/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the loaded model profiles and any validation failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()

		cfg, err := config.Load(flagConfig)
		if err != nil {
			log.Warn("config load failed, using defaults", "error", err)
		}

		reg, loadErrs := profile.LoadDir(cfg.ProfilesDir)
		for _, p := range reg.Profiles() {
			fmt.Printf("%-12s priority=%-3d %-24s %s\n", p.ID, p.Priority, p.Name, p.File())
		}
		for _, e := range loadErrs {
			fmt.Printf("INVALID: %v\n", e)
		}
		if reg.Len() == 0 && len(loadErrs) == 0 {
			fmt.Printf("no profiles found in %s\n", cfg.ProfilesDir)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
