package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/galligan/pickme/internal/config"
	"github.com/galligan/pickme/internal/ipcclient"
)

var invalidateRoot string

var invalidateCmd = &cobra.Command{
	Use:     "invalidate",
	Short:   "Bump the index generation counter, invalidating daemon caches",
	GroupID: groupCore,
	RunE:    runInvalidate,
}

func init() {
	invalidateCmd.Flags().StringVar(&invalidateRoot, "root", "", "root to invalidate (informational; the generation counter is global)")
}

func runInvalidate(cobraCmd *cobra.Command, args []string) error {
	paths := config.DefaultPaths()
	resp, err := ipcclient.SendRequest(paths.SocketFile(), ipcclient.Request{
		Type: "invalidate", Root: invalidateRoot,
	}, ipcclient.DefaultRequestTimeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if !resp.OK {
		fmt.Fprintln(os.Stderr, resp.Error)
		os.Exit(1)
	}
	return nil
}
