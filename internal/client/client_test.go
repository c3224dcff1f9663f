package client

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadpool/internal/logger"
	"threadpool/internal/server"
	"threadpool/internal/worker"
)

var quiet = logger.New(io.Discard, logger.LevelError)

// startServer はテスト用の接続サーバーを起動する
func startServer(t *testing.T) string {
	t.Helper()

	pool := worker.NewPoolWithConfig(worker.PoolConfig{Size: 4, Logger: quiet})
	t.Cleanup(pool.Stop)

	config := server.DefaultConfig()
	config.Addr = "127.0.0.1:0"
	config.Sleep = 10 * time.Millisecond

	srv, err := server.New(config, pool)
	require.NoError(t, err)
	srv.SetLogger(quiet)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return srv.Addr().String()
}

func newTestClient(config Config) *Client {
	c := New(config)
	c.SetLogger(quiet)
	return c
}

func TestNewDefaults(t *testing.T) {
	c := New(Config{Addr: "127.0.0.1:1"})

	assert.Equal(t, 4, c.config.NumWorkers)
	assert.Equal(t, 8, c.config.MaxInFlight)
	assert.Equal(t, DefaultConfig().Timeout, c.config.Timeout)
	assert.False(t, c.IsRunning())
}

func TestExpectedStatus(t *testing.T) {
	assert.Equal(t, "HTTP/1.1 200 OK", expectedStatus("/"))
	assert.Equal(t, "HTTP/1.1 200 OK", expectedStatus("/sleep"))
	assert.Equal(t, "HTTP/1.1 404 NOT FOUND", expectedStatus("/missing"))
}

func TestPickPath(t *testing.T) {
	c := New(Config{SleepRatio: 1})
	assert.Equal(t, "/sleep", c.pickPath())

	c = New(Config{NotFoundRatio: 1})
	assert.Equal(t, "/missing", c.pickPath())

	c = New(Config{})
	assert.Equal(t, "/", c.pickPath())
}

func TestRunRequests(t *testing.T) {
	addr := startServer(t)
	c := newTestClient(Config{Addr: addr, NumWorkers: 4, Timeout: 5 * time.Second})

	snap := c.RunRequests(context.Background(), 50)

	assert.Equal(t, uint64(50), snap.TotalJobs)
	assert.Equal(t, uint64(50), snap.SuccessJobs)
	assert.Zero(t, snap.FailedJobs)
	assert.False(t, c.IsRunning())
}

func TestRunRequestsMixedPaths(t *testing.T) {
	addr := startServer(t)
	c := newTestClient(Config{
		Addr:          addr,
		NumWorkers:    4,
		SleepRatio:    0.3,
		NotFoundRatio: 0.3,
		Timeout:       5 * time.Second,
	})

	snap := c.RunRequests(context.Background(), 30)

	// 404も期待どおりのステータスなので成功扱い
	assert.Equal(t, uint64(30), snap.SuccessJobs)
	assert.Zero(t, snap.FailedJobs)
}

// counterValue はレジストリからカウンタの値を取り出す
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestRunRequestsUnreachable(t *testing.T) {
	c := newTestClient(Config{Addr: "127.0.0.1:1", NumWorkers: 2, Timeout: time.Second})
	reg := prometheus.NewRegistry()
	require.NoError(t, c.Metrics().Register(reg))

	snap := c.RunRequests(context.Background(), 5)

	assert.Equal(t, uint64(5), snap.FailedJobs)
	assert.Zero(t, snap.SuccessJobs)

	// 接続失敗はpanicとして数えない
	assert.Equal(t, 5.0, counterValue(t, reg, "threadpool_jobs_errored_total"))
	assert.Equal(t, 0.0, counterValue(t, reg, "threadpool_jobs_panicked_total"))
}

func TestRunFor(t *testing.T) {
	addr := startServer(t)
	c := newTestClient(Config{Addr: addr, NumWorkers: 2, Timeout: 5 * time.Second})

	snap := c.RunFor(context.Background(), 100*time.Millisecond)

	assert.Greater(t, snap.TotalJobs, uint64(0))
	assert.Equal(t, snap.TotalJobs, snap.SuccessJobs)
	assert.False(t, c.IsRunning())
}

func TestStopIdempotent(t *testing.T) {
	c := newTestClient(Config{Addr: "127.0.0.1:1"})
	c.Stop()

	c.Start(context.Background())
	assert.True(t, c.IsRunning())
	c.Stop()
	c.Stop()
	assert.False(t, c.IsRunning())
}
