package client

import (
	"bufio"
	"context"
	"math/rand/v2"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"threadpool/internal/logger"
	"threadpool/internal/metrics"
	"threadpool/internal/worker"
)

// Config はClientの設定
type Config struct {
	Addr          string        // 接続先
	NumWorkers    int           // ワーカー数（0以下で4）
	MaxInFlight   int           // 同時リクエスト上限（0以下でNumWorkers*2）
	SleepRatio    float64       // /sleep の比率（0.0〜1.0）
	NotFoundRatio float64       // 存在しないパスの比率（0.0〜1.0）
	Timeout       time.Duration // 1リクエストのタイムアウト
	RequestsLimit uint64        // リクエスト上限（0で無制限）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Addr:          "127.0.0.1:7878",
		NumWorkers:    4,
		SleepRatio:    0,
		NotFoundRatio: 0,
		Timeout:       10 * time.Second,
	}
}

// Client は負荷生成器
type Client struct {
	config  Config
	pool    *worker.Pool
	metrics *metrics.Metrics
	log     *logger.Logger

	inFlight  chan struct{}
	submitted atomic.Uint64

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New は新しいClientを作成する
func New(config Config) *Client {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 4
	}
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = config.NumWorkers * 2
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		config:   config,
		metrics:  metrics.New(),
		log:      logger.Current(),
		inFlight: make(chan struct{}, config.MaxInFlight),
	}
}

// SetLogger はロガーを設定する
func (c *Client) SetLogger(l *logger.Logger) {
	c.log = l
}

// Start は負荷生成を開始する
func (c *Client) Start(ctx context.Context) {
	if c.running.Swap(true) {
		return
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.pool = worker.NewPoolWithConfig(worker.PoolConfig{
		Size:   c.config.NumWorkers,
		Logger: c.log,
	})

	c.log.Info("client", "Client started (workers: %d, target: %s, sleep_ratio: %.1f%%)",
		c.config.NumWorkers, c.config.Addr, c.config.SleepRatio*100)

	c.wg.Add(1)
	go c.generateRequests()
}

// generateRequests はリクエストを生成し続ける
func (c *Client) generateRequests() {
	defer c.wg.Done()

	for {
		if c.config.RequestsLimit > 0 && c.submitted.Load() >= c.config.RequestsLimit {
			return
		}

		select {
		case <-c.ctx.Done():
			return
		case c.inFlight <- struct{}{}:
		}

		path := c.pickPath()
		if err := c.pool.Submit(c.createJob(path)); err != nil {
			<-c.inFlight
			return
		}
		c.submitted.Add(1)
	}
}

// pickPath はリクエストするパスを選ぶ
func (c *Client) pickPath() string {
	r := rand.Float64()
	switch {
	case r < c.config.SleepRatio:
		return "/sleep"
	case r < c.config.SleepRatio+c.config.NotFoundRatio:
		return "/missing"
	default:
		return "/"
	}
}

// createJob はリクエストジョブを作成する
func (c *Client) createJob(path string) worker.Job {
	return func() {
		defer func() { <-c.inFlight }()

		start := time.Now()
		status, err := c.request(path)
		latency := time.Since(start)

		if err == nil && status != expectedStatus(path) {
			err = errors.Errorf("unexpected status %q for %s", status, path)
		}
		if err != nil {
			c.log.Debug("client", "Request %s failed: %v", path, err)
			c.metrics.RecordError(latency)
			return
		}
		c.metrics.RecordSuccess(latency)
	}
}

// request は1リクエストを送信し、ステータス行を返す
func (c *Client) request(path string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.config.Addr, c.config.Timeout)
	if err != nil {
		return "", errors.Wrap(err, "dial")
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.config.Timeout)); err != nil {
		return "", errors.Wrap(err, "set deadline")
	}
	if _, err := conn.Write([]byte("GET " + path + " HTTP/1.1\r\n")); err != nil {
		return "", errors.Wrap(err, "write request")
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "read status line")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// expectedStatus はパスに対して期待されるステータス行を返す
func expectedStatus(path string) string {
	switch path {
	case "/", "/sleep":
		return "HTTP/1.1 200 OK"
	default:
		return "HTTP/1.1 404 NOT FOUND"
	}
}

// Stop は負荷生成を停止し、実行中のリクエストの完了を待つ
func (c *Client) Stop() {
	if !c.running.Swap(false) {
		return
	}

	c.cancel()
	c.wg.Wait()
	c.pool.Stop()

	c.log.Info("client", "Client stopped")
}

// Metrics はメトリクスを返す
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// IsRunning は実行中かどうかを返す
func (c *Client) IsRunning() bool {
	return c.running.Load()
}

// RunFor は指定時間だけ負荷生成を実行する
func (c *Client) RunFor(ctx context.Context, duration time.Duration) *metrics.Snapshot {
	c.Start(ctx)

	select {
	case <-ctx.Done():
	case <-time.After(duration):
	}

	c.Stop()

	snapshot := c.metrics.Snapshot()
	return &snapshot
}

// RunRequests は指定数のリクエストを実行する
func (c *Client) RunRequests(ctx context.Context, count uint64) *metrics.Snapshot {
	c.config.RequestsLimit = count
	c.Start(ctx)
	c.wg.Wait()
	c.Stop()

	snapshot := c.metrics.Snapshot()
	return &snapshot
}
