// Package cmd implements the pickme command-line surface: the subcommands
// spec section 6 lists (search, health, invalidate, stop) plus the
// supplemental index/refresh commands needed to populate the store, and
// the hidden daemon entry point shared with cmd/pickmed.
package cmd

import (
	"github.com/spf13/cobra"
)

const (
	groupCore  = "core"
	groupIndex = "index"
)

var rootCmd = &cobra.Command{
	Use:   "pickme",
	Short: "Sub-50ms @file completion for interactive coding assistants",
	Long: `pickme maintains a persistent, incrementally updated file index and
answers prefix/fuzzy queries ranked by full-text relevance and git-derived
frecency. A daemon serves queries over a UNIX-domain socket; this CLI falls
back to a direct in-process search when the daemon is absent.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupCore, Title: "Core Commands:"},
		&cobra.Group{ID: groupIndex, Title: "Index Commands:"},
	)

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(invalidateCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(refreshCmd)

	rootCmd.AddCommand(daemonCmd)
}
