//go:build !windows

package daemonserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockFile_AcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pickme.lock")
	lf := NewLockFile(path)
	require.NoError(t, lf.Acquire())

	pid, held, err := ReadHeldPID(path)
	require.NoError(t, err)
	require.True(t, held)
	require.Equal(t, os.Getpid(), pid)

	require.NoError(t, lf.Release())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestLockFile_SecondAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pickme.lock")
	first := NewLockFile(path)
	require.NoError(t, first.Acquire())
	defer first.Release()

	second := NewLockFile(path)
	err := second.Acquire()
	require.Error(t, err)
}

func TestLockFilePath_UsesPickmeName(t *testing.T) {
	require.Equal(t, filepath.Join("/base", "pickme.lock"), LockFilePath("/base"))
}

func TestReadHeldPID_MissingFileIsNotHeld(t *testing.T) {
	pid, held, err := ReadHeldPID(filepath.Join(t.TempDir(), "nope.lock"))
	require.NoError(t, err)
	require.False(t, held)
	require.Zero(t, pid)
}
