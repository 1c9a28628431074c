// Command pickme is the CLI surface for the file index search engine:
// search, health, invalidate, stop, and the index/refresh maintenance
// commands, plus a hidden "daemon run" entry point.
package main

import (
	"os"

	"github.com/galligan/pickme/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
