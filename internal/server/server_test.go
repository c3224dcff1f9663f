package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/worker"
)

func newTestPool(t *testing.T, size int) *worker.Pool {
	t.Helper()
	p := worker.NewPoolWithConfig(worker.PoolConfig{
		Size:   size,
		Logger: logger.New(io.Discard, logger.LevelError),
	})
	t.Cleanup(p.Stop)
	return p
}

// startServer はテスト用にサーバーを起動し、停止関数を返す
func startServer(t *testing.T, config Config, pool Submitter) (*Server, <-chan error, context.CancelFunc) {
	t.Helper()
	config.Addr = "127.0.0.1:0"

	srv, err := New(config, pool)
	require.NoError(t, err)
	srv.SetLogger(logger.New(io.Discard, logger.LevelError))
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()
	t.Cleanup(cancel)
	return srv, errCh, cancel
}

func doRequest(addr net.Addr, line string) (string, error) {
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(line)); err != nil {
		return "", err
	}
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return "", err
	}
	resp, err := io.ReadAll(conn)
	return string(resp), err
}

func request(t *testing.T, addr net.Addr, line string) string {
	t.Helper()
	resp, err := doRequest(addr, line)
	require.NoError(t, err)
	return resp
}

func TestRoute(t *testing.T) {
	tests := []struct {
		line   string
		status string
		page   string
		sleep  bool
	}{
		{"GET / HTTP/1.1\r\n", statusOK, helloPage, false},
		{"GET /sleep HTTP/1.1\r\n", statusOK, helloPage, true},
		{"GET /missing HTTP/1.1\r\n", statusNotFound, notFoundPage, false},
		{"POST / HTTP/1.1\r\n", statusNotFound, notFoundPage, false},
		{"GET / HTTP/1.1", statusNotFound, notFoundPage, false},
		{"", statusNotFound, notFoundPage, false},
	}

	for _, tt := range tests {
		status, page, _, sleep := route(tt.line)
		assert.Equal(t, tt.status, status, "%q", tt.line)
		assert.Equal(t, tt.page, page, "%q", tt.line)
		assert.Equal(t, tt.sleep, sleep, "%q", tt.line)
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(DefaultConfig(), nil)
	assert.Error(t, err)

	config := DefaultConfig()
	config.MaxConns = -1
	_, err = New(config, newTestPool(t, 1))
	assert.Error(t, err)

	config = DefaultConfig()
	config.DocRoot = t.TempDir()
	_, err = New(config, newTestPool(t, 1))
	assert.Error(t, err, "doc root without pages must fail")
}

func TestServeHello(t *testing.T) {
	srv, _, _ := startServer(t, DefaultConfig(), newTestPool(t, 2))

	resp := request(t, srv.Addr(), "GET / HTTP/1.1\r\n\r\n")

	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\nContent-Length: "), resp)
	assert.Contains(t, resp, "<h1>Hello!</h1>")

	hello := srv.pages[helloPage]
	assert.True(t, strings.HasSuffix(resp, "\r\n\r\n"+string(hello)))
}

func TestServeNotFound(t *testing.T) {
	srv, _, _ := startServer(t, DefaultConfig(), newTestPool(t, 2))

	resp := request(t, srv.Addr(), "GET /missing HTTP/1.1\r\n\r\n")

	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 404 NOT FOUND\r\n"), resp)
	assert.Contains(t, resp, "Oops!")
}

func TestServeSleepDoesNotBlockOtherWorkers(t *testing.T) {
	config := DefaultConfig()
	config.Sleep = 300 * time.Millisecond
	srv, _, _ := startServer(t, config, newTestPool(t, 2))

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, err := doRequest(srv.Addr(), "GET /sleep HTTP/1.1\r\n\r\n")
		assert.NoError(t, err)
	}()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	resp := request(t, srv.Addr(), "GET / HTTP/1.1\r\n\r\n")
	assert.Less(t, time.Since(start), config.Sleep, "fast request waited for the sleeping one")
	assert.Contains(t, resp, "200 OK")

	<-slowDone
}

func TestServeMaxConns(t *testing.T) {
	config := DefaultConfig()
	config.MaxConns = 2
	srv, errCh, _ := startServer(t, config, newTestPool(t, 2))

	request(t, srv.Addr(), "GET / HTTP/1.1\r\n\r\n")
	request(t, srv.Addr(), "GET / HTTP/1.1\r\n\r\n")

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after MaxConns")
	}
	assert.Equal(t, uint64(2), srv.Accepted())
	assert.Equal(t, uint64(2), srv.Served())
}

func TestServeContextCancel(t *testing.T) {
	_, errCh, cancel := startServer(t, DefaultConfig(), newTestPool(t, 1))

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServePoolStopped(t *testing.T) {
	pool := newTestPool(t, 1)
	srv, errCh, _ := startServer(t, DefaultConfig(), pool)
	pool.Stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, worker.ErrPoolClosed), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not report the stopped pool")
	}
}

func TestServeDocRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.html"), []byte("custom hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "404.html"), []byte("custom missing"), 0o644))

	config := DefaultConfig()
	config.DocRoot = dir
	srv, _, _ := startServer(t, config, newTestPool(t, 1))

	resp := request(t, srv.Addr(), "GET / HTTP/1.1\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 12\r\n\r\ncustom hello", resp)
}

func TestServePublishesEvents(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe()

	config := DefaultConfig()
	config.Addr = "127.0.0.1:0"
	srv, err := New(config, newTestPool(t, 1))
	require.NoError(t, err)
	srv.SetLogger(logger.New(io.Discard, logger.LevelError))
	srv.SetEventBus(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Listen())
	go func() { _ = srv.Serve(ctx) }()

	request(t, srv.Addr(), "GET /nope HTTP/1.1\r\n\r\n")

	select {
	case ev := <-ch:
		assert.Equal(t, events.EventConnectionServed, ev.Type)
		assert.Equal(t, 404, ev.Data.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no connection_served event")
	}
}

func TestServeConcurrentClients(t *testing.T) {
	srv, _, _ := startServer(t, DefaultConfig(), newTestPool(t, 4))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var bodies [][]byte
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := doRequest(srv.Addr(), "GET / HTTP/1.1\r\n\r\n")
			assert.NoError(t, err)
			mu.Lock()
			bodies = append(bodies, []byte(resp))
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, bodies, 20)
	for _, b := range bodies {
		assert.True(t, bytes.HasPrefix(b, []byte(statusOK)))
	}
}
