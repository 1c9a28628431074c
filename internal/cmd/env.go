package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/galligan/pickme/internal/config"
	"github.com/galligan/pickme/internal/picker"
	"github.com/galligan/pickme/internal/store"
	"github.com/galligan/pickme/internal/walker"
)

// newLogger builds the CLI's slog.Logger, gated to debug level by
// PICKME_DEBUG per spec section 6's documented environment variable.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("PICKME_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file at paths.ConfigFile(), falling back to
// defaults when absent. Reading a file from disk is the CLI binary's job;
// the core packages only ever see the resulting *config.Config (spec
// section 1/section 9).
func loadConfig(paths *config.Paths) (*config.Config, error) {
	return config.LoadFile(paths.ConfigFile())
}

// openPicker opens the index store and wraps it in a Picker using the
// default filesystem walker, for the CLI's direct in-process fallback path
// (used when the daemon is absent or disabled) and for the index/refresh
// commands, which always operate in-process.
func openPicker(ctx context.Context, paths *config.Paths, cfg *config.Config, logger *slog.Logger) (*picker.Picker, error) {
	if err := paths.EnsureBaseDir(); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, store.Options{Path: paths.DatabaseFile(), Logger: logger, SkipWALCheckpointLoop: true})
	if err != nil {
		return nil, err
	}
	return picker.New(st, walker.New(), cfg, logger), nil
}
