package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/galligan/pickme/internal/config"
	"github.com/galligan/pickme/internal/ipcclient"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check daemon health",
	GroupID: groupCore,
	RunE:    runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "output health payload as JSON")
}

func runHealth(cobraCmd *cobra.Command, args []string) error {
	paths := config.DefaultPaths()
	socketPath := paths.SocketFile()

	resp, err := ipcclient.SendRequest(socketPath, ipcclient.Request{Type: "health"}, ipcclient.DefaultHealthTimeout)
	if err != nil || !resp.OK || resp.Health == nil {
		fmt.Fprintln(os.Stderr, "daemon not healthy")
		os.Exit(1)
	}

	if healthJSON {
		return json.NewEncoder(os.Stdout).Encode(resp.Health)
	}
	h := resp.Health
	fmt.Printf("uptime: %.1fs\n", h.Uptime)
	fmt.Printf("rss: %d bytes\n", h.RSS)
	fmt.Printf("generation: %d\n", h.Generation)
	fmt.Printf("cache hit rate: %.2f\n", h.CacheHitRate)
	fmt.Printf("roots loaded: %d\n", h.RootsLoaded)
	return nil
}
