package daemonserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/galligan/pickme/internal/picker"
)

type fakeSearcher struct {
	mu           sync.Mutex
	searchErr    error
	searchDelay  time.Duration
	items        []picker.Item
	generation   int64
	watchedRoots int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ picker.SearchOptions) ([]picker.Item, error) {
	f.mu.Lock()
	delay, err, items := f.searchDelay, f.searchErr, f.items
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (f *fakeSearcher) Generation(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generation, nil
}

func (f *fakeSearcher) Invalidate(context.Context, string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation++
	return f.generation, nil
}

func (f *fakeSearcher) WatchedRootCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watchedRoots, nil
}

func startTestServer(t *testing.T, fake *fakeSearcher, opts Options) (string, func()) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "test.sock")
	opts.SocketPath = socketPath
	opts.Picker = fake
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = time.Second
	}
	if opts.RSSCheckInterval == 0 {
		opts.RSSCheckInterval = time.Hour
	}
	srv := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", socketPath); err == nil {
			conn.Close()
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	return socketPath, func() {
		cancel()
		<-done
	}
}

func sendRequest(t *testing.T, socketPath string, req Request) Response {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	data, err := json.Marshal(req)
	require.NoError(t, err)
	_, err = conn.Write(append(data, '\n'))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	return resp
}

func TestServer_SearchRoundTrip(t *testing.T) {
	fake := &fakeSearcher{items: []picker.Item{{Path: "/p/a.ts", Score: 3.5}}}
	socketPath, stop := startTestServer(t, fake, Options{})
	defer stop()

	resp := sendRequest(t, socketPath, Request{ID: "1", Type: TypeSearch, Query: "a"})
	require.True(t, resp.OK)
	require.Equal(t, "1", resp.ID)
	require.Len(t, resp.Results, 1)
	require.Equal(t, "/p/a.ts", resp.Results[0].Path)
	require.NotNil(t, resp.Cached)
	require.False(t, *resp.Cached)
	require.NotNil(t, resp.DurationMs)
}

func TestServer_InvalidJSON(t *testing.T) {
	fake := &fakeSearcher{}
	socketPath, stop := startTestServer(t, fake, Options{})
	defer stop()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("{not json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	require.False(t, resp.OK)
	require.Equal(t, "invalid JSON", resp.Error)
}

func TestServer_UnknownType(t *testing.T) {
	fake := &fakeSearcher{}
	socketPath, stop := startTestServer(t, fake, Options{})
	defer stop()

	resp := sendRequest(t, socketPath, Request{ID: "1", Type: "bogus"})
	require.False(t, resp.OK)
	require.NotEmpty(t, resp.Error)
}

func TestServer_HealthRoundTrip(t *testing.T) {
	fake := &fakeSearcher{watchedRoots: 2, generation: 7}
	socketPath, stop := startTestServer(t, fake, Options{})
	defer stop()

	resp := sendRequest(t, socketPath, Request{ID: "1", Type: TypeHealth})
	require.True(t, resp.OK)
	require.NotNil(t, resp.Health)
	require.Equal(t, int64(7), resp.Health.Generation)
	require.Equal(t, 2, resp.Health.ActiveWatchers)
	require.Equal(t, 2, resp.Health.RootsLoaded)
}

func TestServer_InvalidateBumpsGeneration(t *testing.T) {
	fake := &fakeSearcher{generation: 1}
	socketPath, stop := startTestServer(t, fake, Options{})
	defer stop()

	resp := sendRequest(t, socketPath, Request{ID: "1", Type: TypeInvalidate})
	require.True(t, resp.OK)

	health := sendRequest(t, socketPath, Request{ID: "2", Type: TypeHealth})
	require.Equal(t, int64(2), health.Health.Generation)
}

func TestServer_RequestTimeout(t *testing.T) {
	fake := &fakeSearcher{searchDelay: 200 * time.Millisecond}
	socketPath, stop := startTestServer(t, fake, Options{RequestTimeout: 20 * time.Millisecond})
	defer stop()

	resp := sendRequest(t, socketPath, Request{ID: "1", Type: TypeSearch, Query: "a"})
	require.False(t, resp.OK)
	require.Equal(t, "Request timeout", resp.Error)
}

func TestServer_StopRequestEndsRun(t *testing.T) {
	fake := &fakeSearcher{}
	socketPath, stop := startTestServer(t, fake, Options{})
	defer stop()

	resp := sendRequest(t, socketPath, Request{ID: "1", Type: TypeStop})
	require.True(t, resp.OK)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := net.Dial("unix", socketPath); err != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server did not shut down after stop request")
}

func TestServer_TwoConsecutiveDBErrorsStopsServer(t *testing.T) {
	fake := &fakeSearcher{searchErr: errors.New("db exploded")}
	socketPath, stop := startTestServer(t, fake, Options{})
	defer stop()

	resp1 := sendRequest(t, socketPath, Request{ID: "1", Type: TypeSearch, Query: "a"})
	require.False(t, resp1.OK)
	resp2 := sendRequest(t, socketPath, Request{ID: "2", Type: TypeSearch, Query: "a"})
	require.False(t, resp2.OK)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := net.Dial("unix", socketPath); err != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server did not stop after two consecutive DB errors")
}
