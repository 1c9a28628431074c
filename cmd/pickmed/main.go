// Command pickmed is the standalone daemon entry point: the same boot
// sequence as "pickme daemon run", packaged as its own binary so init
// scripts and service supervisors can launch it directly without going
// through the cobra CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/galligan/pickme/internal/cmd"
)

func main() {
	if err := cmd.RunDaemon(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "pickmed: %v\n", err)
		os.Exit(1)
	}
}
