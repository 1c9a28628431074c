package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/galligan/pickme/internal/config"
	"github.com/galligan/pickme/internal/picker"
)

var refreshForce bool

var refreshCmd = &cobra.Command{
	Use:     "refresh <root>",
	Short:   "Re-scan a single root incrementally",
	GroupID: groupIndex,
	Long: `Refresh re-scans root, prunes files no longer present on disk, bumps
the index generation counter, and refreshes git frecency. Without --force,
the walker is given the root's last_indexed timestamp so it only reports
files modified since then.`,
	Args: cobra.ExactArgs(1),
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "ignore last_indexed and do a full re-scan")
}

func runRefresh(cobraCmd *cobra.Command, args []string) error {
	ctx := context.Background()
	paths := config.DefaultPaths()
	cfg, err := loadConfig(paths)
	if err != nil {
		return err
	}

	p, err := openPicker(ctx, paths, cfg, newLogger())
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.RefreshIndex(ctx, args[0], picker.RefreshOptions{Force: refreshForce})
	if err != nil {
		return err
	}

	fmt.Printf("refreshed %d files in %dms\n", result.FilesIndexed, result.DurationMs)
	for _, e := range result.Errors {
		fmt.Fprintln(os.Stderr, e.Error())
	}
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
	return nil
}
