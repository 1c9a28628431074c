package daemonserver

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/galligan/pickme/internal/config"
)

// IsRunning reports whether a daemon is currently running for paths,
// preferring the PID file but falling back to the held lock's PID when
// the PID file is missing or stale.
func IsRunning(paths *config.Paths) bool {
	pid, err := ReadPID(paths.PIDFile())
	if err != nil {
		pid = 0
	}
	if pid > 0 {
		if process, ferr := os.FindProcess(pid); ferr == nil {
			if process.Signal(syscall.Signal(0)) == nil {
				return true
			}
		}
	}

	lockPID, held, err := ReadHeldPID(LockFilePath(paths.BaseDir))
	if err != nil || !held || lockPID <= 0 {
		return false
	}
	process, err := os.FindProcess(lockPID)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// ReadPID reads the PID recorded at pidPath.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID: %w", err)
	}
	return pid, nil
}

// Stop sends SIGTERM to the running daemon and waits up to 10s for it to
// exit, force-killing if it doesn't.
func Stop(paths *config.Paths) error {
	pid, err := ReadPID(paths.PIDFile())
	if err != nil || pid <= 0 {
		pid = 0
	}
	if pid > 0 {
		if proc, ferr := os.FindProcess(pid); ferr != nil || proc.Signal(syscall.Signal(0)) != nil {
			pid = 0
		}
	}
	if pid == 0 {
		lockPID, held, lerr := ReadHeldPID(LockFilePath(paths.BaseDir))
		if lerr != nil {
			return fmt.Errorf("failed to read PID and lock PID: %w", lerr)
		}
		if !held || lockPID <= 0 {
			return fmt.Errorf("daemon not running")
		}
		pid = lockPID
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-timeout:
			process.Kill()
			return nil
		case <-ticker.C:
			if err := process.Signal(syscall.Signal(0)); err != nil {
				return nil
			}
		}
	}
}

// CleanupStale removes a leftover socket and PID file, refusing if the
// daemon is still detected as running.
func CleanupStale(paths *config.Paths) error {
	if IsRunning(paths) {
		return fmt.Errorf("daemon is still running")
	}
	if err := os.Remove(paths.SocketFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove socket: %w", err)
	}
	if err := os.Remove(paths.PIDFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}
