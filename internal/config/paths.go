// Package config provides the path and configuration surface consumed by
// the pickme search engine core. The core never loads a config file itself
// (see Config); only the CLI entry points in cmd/ read one from disk.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds the filesystem locations the daemon and store use.
// Paths live under BaseDir unless overridden (PICKME_SOCKET for the socket,
// PICKME_CONFIG_PATH or XDG_CONFIG_HOME for the config file). BaseDir
// defaults to $XDG_DATA_HOME/pickme
// (or ~/.local/share/pickme, or %APPDATA%\pickme on Windows) per spec
// section 6.
type Paths struct {
	// BaseDir is the root directory for all pickme runtime files.
	BaseDir string
}

// DefaultPaths returns the default paths, honoring XDG_DATA_HOME and the
// PICKME_HOME override.
func DefaultPaths() *Paths {
	if home := os.Getenv("PICKME_HOME"); home != "" {
		return &Paths{BaseDir: home}
	}

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(homeDir(), "AppData", "Roaming")
		}
		return &Paths{BaseDir: filepath.Join(appData, "pickme")}
	}

	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return &Paths{BaseDir: filepath.Join(xdg, "pickme")}
	}

	return &Paths{BaseDir: filepath.Join(homeDir(), ".local", "share", "pickme")}
}

// DatabaseFile returns the path to the SQLite index file.
func (p *Paths) DatabaseFile() string {
	return filepath.Join(p.BaseDir, "index.db")
}

// SocketFile returns the path to the daemon's Unix domain socket.
func (p *Paths) SocketFile() string {
	if path := os.Getenv("PICKME_SOCKET"); path != "" {
		return path
	}
	return filepath.Join(p.BaseDir, "pickme.sock")
}

// PIDFile returns the path to the daemon PID file.
func (p *Paths) PIDFile() string {
	return filepath.Join(p.BaseDir, "pickme.pid")
}

// LogFile returns the path to the daemon log file.
func (p *Paths) LogFile() string {
	return filepath.Join(p.BaseDir, "pickme.log")
}

// ConfigFile returns the path to the config file, honoring PICKME_CONFIG_PATH.
func (p *Paths) ConfigFile() string {
	if path := os.Getenv("PICKME_CONFIG_PATH"); path != "" {
		return path
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && runtime.GOOS != "windows" {
		return filepath.Join(xdg, "pickme", "config.yaml")
	}
	return filepath.Join(p.BaseDir, "config.yaml")
}

// EnsureBaseDir creates BaseDir (and nothing else) if it doesn't exist.
func (p *Paths) EnsureBaseDir() error {
	return os.MkdirAll(p.BaseDir, 0o700)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return home
	}
	if runtime.GOOS == "windows" {
		return os.Getenv("USERPROFILE")
	}
	return os.Getenv("HOME")
}
