package daemonserver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OneDBErrorDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker()
	require.False(t, cb.RecordDBError())
	require.False(t, cb.Open())
}

func TestCircuitBreaker_TwoConsecutiveDBErrorsTrip(t *testing.T) {
	cb := NewCircuitBreaker()
	cb.RecordDBError()
	require.True(t, cb.RecordDBError())
	require.True(t, cb.Open())
}

func TestCircuitBreaker_SuccessResetsCounter(t *testing.T) {
	cb := NewCircuitBreaker()
	cb.RecordDBError()
	cb.RecordDBSuccess()
	require.False(t, cb.RecordDBError())
	require.False(t, cb.Open())
}

func TestCircuitBreaker_RSSWarnOnlyFiresOnce(t *testing.T) {
	cb := NewCircuitBreaker()
	warn, shutdown := cb.CheckRSS(300 << 20)
	require.True(t, warn)
	require.False(t, shutdown)

	warn, shutdown = cb.CheckRSS(300 << 20)
	require.False(t, warn)
	require.False(t, shutdown)
}

func TestCircuitBreaker_RSSShutdownTrips(t *testing.T) {
	cb := NewCircuitBreaker()
	_, shutdown := cb.CheckRSS(600 << 20)
	require.True(t, shutdown)
	require.True(t, cb.Open())
}

func TestCircuitBreaker_RSSBelowWarnIsQuiet(t *testing.T) {
	cb := NewCircuitBreaker()
	warn, shutdown := cb.CheckRSS(10 << 20)
	require.False(t, warn)
	require.False(t, shutdown)
	require.False(t, cb.Open())
}
