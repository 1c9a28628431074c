package daemonserver

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/galligan/pickme/internal/picker"
)

// Timing and threshold constants from spec §4.H.
const (
	RequestTimeout   = 5000 * time.Millisecond
	RSSCheckInterval = 30 * time.Second
)

// Searcher is the subset of *picker.Picker the server depends on,
// narrowed to an interface so tests can substitute a fake orchestrator.
type Searcher interface {
	Search(ctx context.Context, query string, opts picker.SearchOptions) ([]picker.Item, error)
	Generation(ctx context.Context) (int64, error)
	Invalidate(ctx context.Context, root string) (int64, error)
	WatchedRootCount(ctx context.Context) (int, error)
}

// Options configures a new Server.
type Options struct {
	SocketPath string
	PIDPath    string
	Picker     Searcher
	Logger     *slog.Logger

	// RequestTimeout and RSSCheckInterval override the spec defaults;
	// tests shorten the timeout to keep cases fast and lengthen the RSS
	// interval so sampling stays out of the way.
	RequestTimeout   time.Duration
	RSSCheckInterval time.Duration
}

// Server is the daemon's single-threaded cooperative event loop: one
// goroutine accepts connections and dispatches each request in turn.
// Shared state (ring, breaker, generation tracker) is mutated only from
// that loop, per spec §4.H.
type Server struct {
	picker     Searcher
	logger     *slog.Logger
	socketPath string
	pidPath    string

	requestTimeout   time.Duration
	rssCheckInterval time.Duration

	ring    *HitRing
	breaker *CircuitBreaker

	startTime      time.Time
	genCurrent     int64
	lastRSSCheckAt time.Time

	stopOnce  sync.Once
	stopCh    chan struct{}
	listener  net.Listener
}

// New builds a Server. The socket is not bound until Run is called.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = RequestTimeout
	}
	rssInterval := opts.RSSCheckInterval
	if rssInterval <= 0 {
		rssInterval = RSSCheckInterval
	}
	return &Server{
		picker:           opts.Picker,
		logger:           logger,
		socketPath:       opts.SocketPath,
		pidPath:          opts.PIDPath,
		requestTimeout:   requestTimeout,
		rssCheckInterval: rssInterval,
		ring:             NewHitRing(RingCapacity),
		breaker:          NewCircuitBreaker(),
		stopCh:           make(chan struct{}),
	}
}

// Run binds the socket and serves until the context is canceled, a stop
// request arrives, or the circuit breaker trips. It always unlinks the
// socket file on the way out.
func (s *Server) Run(ctx context.Context) error {
	listener, err := listenUnix(s.socketPath)
	if err != nil {
		return err
	}
	s.listener = listener
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	if s.pidPath != "" {
		_ = os.WriteFile(s.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600)
		defer os.Remove(s.pidPath)
	}

	s.startTime = time.Now()
	if gen, err := s.picker.Generation(ctx); err == nil {
		s.genCurrent = gen
	}

	acceptCh := make(chan net.Conn)
	acceptErrCh := make(chan error, 1)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				acceptErrCh <- err
				return
			}
			acceptCh <- conn
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopCh:
			return nil
		case err := <-acceptErrCh:
			return err
		case conn := <-acceptCh:
			s.handleConnection(ctx, conn)
			if s.breaker.Open() {
				s.logger.Warn("circuit breaker open, shutting down")
				return nil
			}
			select {
			case <-s.stopCh:
				return nil
			default:
			}
		}
	}
}

// handleConnection reads exactly one line, dispatches it, and writes
// exactly one response line before closing the connection, per spec
// §4.H's per-connection contract.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	s.maybeCheckRSS()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return
	}
	line = strings.TrimRight(line, "\r\n")

	respCh := make(chan Response, 1)
	go func() { respCh <- s.dispatch(ctx, line) }()

	var resp Response
	select {
	case resp = <-respCh:
	case <-time.After(s.requestTimeout):
		id := ""
		if req, perr := ParseRequest([]byte(line)); perr == nil {
			id = req.ID
		}
		resp = errorResponse(id, "Request timeout")
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_ = conn.SetWriteDeadline(time.Now().Add(s.requestTimeout))
	_, _ = conn.Write(data)
}

func (s *Server) dispatch(ctx context.Context, line string) Response {
	req, err := ParseRequest([]byte(line))
	if err != nil {
		return errorResponse("", err.Error())
	}
	if err := ValidateRequest(req); err != nil {
		return errorResponse(req.ID, err.Error())
	}

	s.observeGeneration(ctx)

	switch req.Type {
	case TypeSearch:
		return s.handleSearch(ctx, req)
	case TypeHealth:
		return s.handleHealth(ctx, req)
	case TypeInvalidate:
		return s.handleInvalidate(ctx, req)
	case TypeStop:
		return s.handleStop(req)
	default:
		return errorResponse(req.ID, "unknown type")
	}
}

func (s *Server) handleSearch(ctx context.Context, req Request) Response {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	start := time.Now()
	items, err := s.picker.Search(ctx, req.Query, picker.SearchOptions{ProjectRoot: req.Cwd, Limit: limit})
	duration := float64(time.Since(start)) / float64(time.Millisecond)

	if err != nil {
		s.recordDBOutcome(false)
		return errorResponse(req.ID, err.Error())
	}
	s.recordDBOutcome(true)

	cached := false
	s.ring.Record(cached)

	results := make([]ResultRow, len(items))
	for i, it := range items {
		results[i] = ResultRow{Path: it.Path, Score: it.Score, Root: it.Root}
	}
	return Response{ID: req.ID, OK: true, Results: results, Cached: &cached, DurationMs: &duration}
}

func (s *Server) handleHealth(ctx context.Context, req Request) Response {
	rss, _ := readRSS()
	watchers, err := s.picker.WatchedRootCount(ctx)
	if err != nil {
		s.recordDBOutcome(false)
		return errorResponse(req.ID, err.Error())
	}
	s.recordDBOutcome(true)

	health := HealthPayload{
		Uptime:         time.Since(s.startTime).Seconds(),
		RSS:            rss,
		Generation:     s.genCurrent,
		CacheHitRate:   s.ring.HitRate(),
		ActiveWatchers: watchers,
		RootsLoaded:    watchers,
	}
	return Response{ID: req.ID, OK: true, Health: &health}
}

func (s *Server) handleInvalidate(ctx context.Context, req Request) Response {
	gen, err := s.picker.Invalidate(ctx, req.Root)
	if err != nil {
		s.recordDBOutcome(false)
		return errorResponse(req.ID, err.Error())
	}
	s.recordDBOutcome(true)
	s.genCurrent = gen
	return Response{ID: req.ID, OK: true}
}

func (s *Server) handleStop(req Request) Response {
	s.requestStop()
	return Response{ID: req.ID, OK: true}
}

func (s *Server) requestStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// observeGeneration compares the persisted generation to the tracker's
// current value, updating it when an external process bumped the
// counter, per spec §4.H's generation-watch rule.
func (s *Server) observeGeneration(ctx context.Context) {
	gen, err := s.picker.Generation(ctx)
	if err != nil {
		return
	}
	if gen != s.genCurrent {
		s.genCurrent = gen
	}
}

func (s *Server) maybeCheckRSS() {
	now := time.Now()
	if !s.lastRSSCheckAt.IsZero() && now.Sub(s.lastRSSCheckAt) < s.rssCheckInterval {
		return
	}
	s.lastRSSCheckAt = now

	rss, err := readRSS()
	if err != nil {
		return
	}
	warn, shutdown := s.breaker.CheckRSS(uint64(rss))
	if warn {
		s.logger.Warn("rss above warn threshold", "rss_bytes", rss)
	}
	if shutdown {
		s.logger.Error("rss above shutdown threshold, stopping", "rss_bytes", rss)
		s.requestStop()
	}
}

func (s *Server) recordDBOutcome(success bool) {
	if success {
		s.breaker.RecordDBSuccess()
		return
	}
	if s.breaker.RecordDBError() {
		s.logger.Error("consecutive DB errors, stopping")
	}
}

// readRSS approximates resident memory via runtime.MemStats.Sys: no
// dependency in the corpus offers a gopsutil-style cross-platform RSS
// reader, and the /proc/self/status parsing it would take is
// platform-specific in a way nothing else here is.
func readRSS() (int64, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.Sys), nil
}
