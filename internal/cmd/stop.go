package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/galligan/pickme/internal/config"
	"github.com/galligan/pickme/internal/daemonserver"
	"github.com/galligan/pickme/internal/ipcclient"
)

var stopCmd = &cobra.Command{
	Use:     "stop",
	Short:   "Stop the running daemon",
	GroupID: groupCore,
	RunE:    runStop,
}

// runStop asks the daemon to shut down over the NDJSON socket. When the
// socket is gone or unresponsive (a crashed daemon, a dead socket left
// behind after a hard reboot), it falls back to the PID/lock-file-based
// daemonserver.Stop so "pickme stop" still works against a daemon whose
// listener has wedged.
func runStop(cobraCmd *cobra.Command, args []string) error {
	paths := config.DefaultPaths()
	resp, err := ipcclient.SendRequest(paths.SocketFile(), ipcclient.Request{Type: "stop"}, ipcclient.DefaultRequestTimeout)
	if err == nil {
		if !resp.OK {
			fmt.Fprintln(os.Stderr, resp.Error)
			os.Exit(1)
		}
		return nil
	}

	if !daemonserver.IsRunning(paths) {
		// No live process to stop, but a crashed daemon can still leave its
		// socket and PID file behind; clear them so the next "daemon run"
		// doesn't need to tolerate a stale socket on its own.
		if cerr := daemonserver.CleanupStale(paths); cerr != nil {
			fmt.Fprintln(os.Stderr, cerr.Error())
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "daemon not running")
		os.Exit(1)
	}
	if serr := daemonserver.Stop(paths); serr != nil {
		fmt.Fprintln(os.Stderr, serr.Error())
		os.Exit(1)
	}
	return nil
}
