//go:build !windows

package daemonserver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFile guards against more than one daemon instance running against
// the same data directory, using flock(2) with LOCK_EX|LOCK_NB.
type LockFile struct {
	file *os.File
	path string
}

// NewLockFile creates a new LockFile at the specified path. The lock is
// not acquired until Acquire is called.
func NewLockFile(path string) *LockFile {
	return &LockFile{path: path}
}

// LockFilePath returns the default lock file path under a data directory.
func LockFilePath(baseDir string) string {
	return filepath.Join(baseDir, "pickme.lock")
}

// ReadHeldPID returns the PID recorded in lockPath if (and only if) the
// file lock is currently held through another open file, including one
// opened by the calling process itself.
func ReadHeldPID(lockPath string) (pid int, held bool, err error) {
	f, err := os.OpenFile(lockPath, os.O_RDWR, 0) //nolint:gosec // G304: lock file path is from trusted config
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err == nil { //nolint:gosec // G115: fd fits in int
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:gosec // G115: fd fits in int
		return 0, false, nil
	} else if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
		if _, seekErr := f.Seek(0, 0); seekErr != nil {
			return 0, true, nil
		}
		buf := make([]byte, 32)
		n, rerr := f.Read(buf)
		if rerr != nil || n == 0 {
			return 0, true, nil
		}
		pid, _ := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
		return pid, true, nil
	} else {
		return 0, false, fmt.Errorf("flock: %w", err)
	}
}

// Acquire attempts to acquire an exclusive non-blocking lock, recovering
// from a stale lock (held by a dead PID) with a single retry.
func (l *LockFile) Acquire() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil { //nolint:gosec // G115: fd fits in int
		if !errors.Is(err, syscall.EWOULDBLOCK) && !errors.Is(err, syscall.EAGAIN) {
			f.Close()
			return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
		}

		stalePID := l.readPIDFromFile(f)
		f.Close()

		if stalePID > 0 && !isProcessAlive(stalePID) {
			os.Remove(l.path)
			return l.writeLocked()
		}
		if stalePID > 0 {
			return fmt.Errorf("daemon already running (PID %d), lock file: %s", stalePID, l.path)
		}
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}

	return l.writePID(f)
}

// writeLocked reopens and locks the file after removing a stale lock.
func (l *LockFile) writeLocked() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open lock file on retry: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil { //nolint:gosec // G115: fd fits in int
		f.Close()
		return fmt.Errorf("failed to acquire lock on retry: %w", err)
	}
	return l.writePID(f)
}

func (l *LockFile) writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		f.Close()
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		return fmt.Errorf("failed to seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync lock file: %w", err)
	}
	l.file = f
	return nil
}

// Release releases the lock and removes the lock file.
func (l *LockFile) Release() error {
	if l.file == nil {
		return nil
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN) //nolint:gosec // G115: fd fits in int
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close lock file: %w", err)
	}
	l.file = nil
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *LockFile) Path() string {
	return l.path
}

func (l *LockFile) readPIDFromFile(f *os.File) int {
	if _, err := f.Seek(0, 0); err != nil {
		return 0
	}
	buf := make([]byte, 32)
	n, err := f.Read(buf)
	if err != nil || n == 0 {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}

func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
