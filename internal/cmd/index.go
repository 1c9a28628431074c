package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/galligan/pickme/internal/config"
)

var indexCmd = &cobra.Command{
	Use:     "index [roots...]",
	Short:   "Index one or more roots that aren't indexed yet",
	GroupID: groupIndex,
	Long: `Index scans every given root that isn't already present in
watched_roots (or whose last_indexed is unset), upserting the files it
finds and refreshing git frecency for roots that are git repositories.

When no roots are given, the roots configured under index.roots are used,
or the current directory when none are configured.`,
	RunE: runIndex,
}

func runIndex(cobraCmd *cobra.Command, args []string) error {
	ctx := context.Background()
	paths := config.DefaultPaths()
	cfg, err := loadConfig(paths)
	if err != nil {
		return err
	}

	roots := args
	if len(roots) == 0 {
		roots = cfg.Index.Roots
	}
	if len(roots) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		roots = []string{wd}
	}

	p, err := openPicker(ctx, paths, cfg, newLogger())
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.EnsureIndexed(ctx, roots)
	if err != nil {
		return err
	}

	fmt.Printf("indexed %d files, skipped %d already-indexed roots\n", result.FilesIndexed, result.FilesSkipped)
	for _, e := range result.Errors {
		fmt.Fprintln(os.Stderr, e.Error())
	}
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
	return nil
}
