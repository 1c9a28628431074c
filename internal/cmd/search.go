package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/galligan/pickme/internal/config"
	"github.com/galligan/pickme/internal/ipcclient"
	"github.com/galligan/pickme/internal/picker"
	"github.com/galligan/pickme/internal/store"
)

var (
	searchLimit int
	searchCwd   string
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	Short:   "Search the file index",
	GroupID: groupCore,
	Long: `Search the file index for matching files, ranked by full-text
relevance blended with git-derived frecency.

Tries the daemon first; falls back to a direct in-process search when the
daemon is absent and daemon.fallback_to_cli is enabled.

Examples:
  pickme search Button
  pickme search @./src/components:Modal
  pickme search "~fbtsx"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 50, "maximum number of results")
	searchCmd.Flags().StringVar(&searchCwd, "cwd", "", "project root to scope the search to (defaults to the current directory)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
}

func runSearch(cobraCmd *cobra.Command, args []string) error {
	query := args[0]
	cwd := searchCwd
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}

	ctx := context.Background()
	paths := config.DefaultPaths()
	cfg, err := loadConfig(paths)
	if err != nil {
		return err
	}

	if cfg.Daemon.Enabled {
		rows, derr := searchViaDaemon(paths, query, cwd)
		if derr == nil {
			return printResultRows(rows)
		}
		if !cfg.Daemon.FallbackToCLI {
			fmt.Fprintln(os.Stderr, derr.Error())
			os.Exit(1)
		}
	}

	items, err := searchDirect(ctx, paths, cfg, query, cwd)
	if err != nil {
		var serr *store.Error
		if errors.As(err, &serr) && serr.Kind == store.KindFTSSyntax {
			fmt.Fprintf(os.Stderr, "invalid query %q: %v\n", serr.Query, serr.Err)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	return printItems(items)
}

func searchViaDaemon(paths *config.Paths, query, cwd string) ([]ipcclient.ResultRow, error) {
	socketPath := paths.SocketFile()
	if !ipcclient.IsDaemonRunning(socketPath, ipcclient.DefaultHealthTimeout) {
		return nil, errors.New("daemon not running")
	}
	return ipcclient.QueryDaemon(socketPath, ipcclient.QueryOptions{
		Query: query, Cwd: cwd, Limit: searchLimit, Timeout: ipcclient.DefaultRequestTimeout,
	})
}

func searchDirect(ctx context.Context, paths *config.Paths, cfg *config.Config, query, cwd string) ([]picker.Item, error) {
	p, err := openPicker(ctx, paths, cfg, newLogger())
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.Search(ctx, query, picker.SearchOptions{ProjectRoot: cwd, Limit: searchLimit})
}

func printResultRows(rows []ipcclient.ResultRow) error {
	if searchJSON {
		return json.NewEncoder(os.Stdout).Encode(rows)
	}
	for _, r := range rows {
		fmt.Println(r.Path)
	}
	return nil
}

func printItems(items []picker.Item) error {
	if searchJSON {
		return json.NewEncoder(os.Stdout).Encode(items)
	}
	for _, it := range items {
		fmt.Println(it.Path)
	}
	return nil
}
