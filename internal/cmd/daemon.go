package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/galligan/pickme/internal/config"
	"github.com/galligan/pickme/internal/daemonserver"
	"github.com/galligan/pickme/internal/picker"
	"github.com/galligan/pickme/internal/store"
	"github.com/galligan/pickme/internal/walker"
)

var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
}

var daemonRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pickme daemon in the foreground",
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		return RunDaemon(cobraCmd.Context())
	},
}

func init() {
	daemonCmd.AddCommand(daemonRunCmd)
}

// RunDaemon boots the daemon: validates the process isn't root, acquires
// the advisory lock file, opens the index store, and serves the NDJSON
// protocol until a stop request, a circuit-breaker trip, or SIGTERM/SIGINT,
// per spec section 4.H's lifecycle and section 12's supplemental PID/lock
// handling. It is the shared entry point for both "pickme daemon run" and
// the standalone cmd/pickmed binary.
func RunDaemon(ctx context.Context) error {
	logger := newLogger()

	if err := daemonserver.CheckNotRoot(); err != nil {
		return err
	}

	paths := config.DefaultPaths()
	if err := daemonserver.EnsureSecureDirectory(paths.BaseDir); err != nil {
		return fmt.Errorf("secure runtime directory: %w", err)
	}

	cfg, err := loadConfig(paths)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lock := daemonserver.NewLockFile(daemonserver.LockFilePath(paths.BaseDir))
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.Open(ctx, store.Options{Path: paths.DatabaseFile(), Logger: logger})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	p := picker.New(st, walker.New(), cfg, logger)
	defer p.Close()

	socketPath := paths.SocketFile()
	if cfg.Daemon.SocketPath != "" {
		socketPath = cfg.Daemon.SocketPath
	}

	srv := daemonserver.New(daemonserver.Options{
		SocketPath: socketPath,
		PIDPath:    paths.PIDFile(),
		Picker:     p,
		Logger:     logger,
	})

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("pickme daemon starting", slog.String("socket", socketPath))
	return srv.Run(runCtx)
}
