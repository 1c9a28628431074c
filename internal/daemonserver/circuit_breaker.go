package daemonserver

import "sync"

// CircuitState mirrors the two states spec §4.H actually distinguishes:
// serving normally, or shut down. There is no half-open probing state here
// (unlike a request-rate breaker) because the only recovery path is a
// fresh daemon start.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
)

// RSS thresholds from spec §4.H: warn once past 256 MiB, shut down past
// 512 MiB.
const (
	RSSWarnBytes     = 256 << 20
	RSSShutdownBytes = 512 << 20
)

// CircuitBreaker tracks the two fatal conditions spec §4.H names: two
// consecutive DB errors, or RSS over the shutdown threshold. Unlike a
// rate-limiting breaker, it never recovers on its own — once open, the
// server shuts down.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        CircuitState
	dbErrorCount int
	rssWarned    bool
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{}
}

// RecordDBSuccess resets the consecutive-error counter, per spec §4.H
// ("any successful DB call resets the counter").
func (c *CircuitBreaker) RecordDBSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dbErrorCount = 0
}

// RecordDBError increments the consecutive-error counter and trips the
// breaker on the second consecutive failure, reporting whether it just
// tripped.
func (c *CircuitBreaker) RecordDBError() (tripped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dbErrorCount++
	if c.dbErrorCount >= 2 {
		c.state = CircuitOpen
		return true
	}
	return false
}

// CheckRSS reports whether rssBytes crosses the warn or shutdown
// threshold. warn is true only the first time the warn threshold is
// crossed (it does not re-fire on every subsequent sample).
func (c *CircuitBreaker) CheckRSS(rssBytes uint64) (warn, shutdown bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rssBytes > RSSShutdownBytes {
		c.state = CircuitOpen
		return false, true
	}
	if rssBytes > RSSWarnBytes {
		already := c.rssWarned
		c.rssWarned = true
		return !already, false
	}
	return false, false
}

// Trip forces the breaker open, for explicit stop requests.
func (c *CircuitBreaker) Trip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = CircuitOpen
}

// Open reports whether the breaker has tripped.
func (c *CircuitBreaker) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == CircuitOpen
}

// Stats returns the current consecutive-error count and open state, for
// diagnostics and tests.
func (c *CircuitBreaker) Stats() (dbErrorCount int, open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dbErrorCount, c.state == CircuitOpen
}
