package scenario

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/metrics"
	"threadpool/internal/worker"
)

// Config はシナリオの設定
type Config struct {
	Name        string        // シナリオ名
	Description string        // 説明
	Workers     int           // プールのワーカー数
	Jobs        int           // 投入するジョブ数
	Submitters  int           // 投入ゴルーチン数
	JobDuration time.Duration // 1ジョブの処理時間
	PanicEvery  int           // N件ごとにpanicさせる（0で無効）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:        "default",
		Description: "Default scenario",
		Workers:     4,
		Jobs:        1000,
		Submitters:  1,
		JobDuration: time.Millisecond,
		PanicEvery:  0,
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must be non-negative, got %d", c.Jobs)
	}
	if c.Submitters < 0 {
		return fmt.Errorf("submitters must be non-negative, got %d", c.Submitters)
	}
	if c.JobDuration < 0 {
		return fmt.Errorf("job duration must be non-negative, got %v", c.JobDuration)
	}
	if c.PanicEvery < 0 {
		return fmt.Errorf("panic_every must be non-negative, got %d", c.PanicEvery)
	}
	return nil
}

// Result はシナリオ実行結果
type Result struct {
	ScenarioName string        `json:"scenario_name"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration_ns"`
	Workers      int           `json:"workers"`

	// ジョブ統計
	Submitted  uint64        `json:"submitted"`
	Executed   uint64        `json:"executed"`
	Completed  uint64        `json:"completed"`
	Panicked   uint64        `json:"panicked"`
	JPS        float64       `json:"jps"`
	AvgLatency time.Duration `json:"avg_latency_ns"`
	P99Latency time.Duration `json:"p99_latency_ns"`

	// ジョブ本体が数えた完了数。Completed と一致するはず
	Counter uint64 `json:"counter"`
}

// Engine はシナリオ実行エンジン
type Engine struct {
	config   Config
	eventBus *events.Bus
	log      *logger.Logger

	mu      sync.RWMutex
	running bool
	metrics *metrics.Metrics
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config: config,
		log:    logger.Current(),
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// SetLogger はロガーを設定する
func (e *Engine) SetLogger(l *logger.Logger) {
	e.log = l
}

// Run はシナリオを実行する
// ctx がキャンセルされると投入を打ち切り、投入済みのジョブを実行し終えて返る
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", e.config.Name, err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("scenario is already running")
	}
	e.running = true
	e.metrics = metrics.New()
	pool := worker.NewPoolWithConfig(worker.PoolConfig{
		Size:    e.config.Workers,
		Logger:  e.log,
		Metrics: e.metrics,
		Events:  e.eventBus,
	})
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.log.Info("", "=== Scenario '%s' started ===", e.config.Name)
	e.log.Info("", "Description: %s", e.config.Description)

	result := &Result{
		ScenarioName: e.config.Name,
		StartTime:    time.Now(),
		Workers:      e.config.Workers,
	}

	var counter atomic.Uint64
	e.submitAll(ctx, pool, &counter)

	// 停止は投入済みジョブの完了を待つ
	pool.Stop()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Counter = counter.Load()
	e.collectResults(result)

	e.log.Info("", "=== Scenario '%s' completed ===", e.config.Name)

	return result, nil
}

// submitAll はジョブを投入ゴルーチンに分配して投入する
func (e *Engine) submitAll(ctx context.Context, pool *worker.Pool, counter *atomic.Uint64) {
	submitters := max(e.config.Submitters, 1)
	var seq atomic.Int64
	var wg sync.WaitGroup

	for i := range submitters {
		share := e.config.Jobs / submitters
		if i < e.config.Jobs%submitters {
			share++
		}

		wg.Add(1)
		go func(share int) {
			defer wg.Done()
			for range share {
				if ctx.Err() != nil {
					return
				}
				n := seq.Add(1)
				pool.Execute(e.createJob(n, counter))
			}
		}(share)
	}
	wg.Wait()
}

// createJob はシナリオのジョブを作成する
func (e *Engine) createJob(n int64, counter *atomic.Uint64) worker.Job {
	duration := e.config.JobDuration
	fail := e.config.PanicEvery > 0 && n%int64(e.config.PanicEvery) == 0

	return func() {
		if duration > 0 {
			time.Sleep(duration)
		}
		if fail {
			panic(fmt.Sprintf("scenario: injected failure in job %d", n))
		}
		counter.Add(1)
	}
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result) {
	e.mu.RLock()
	m := e.metrics
	e.mu.RUnlock()

	snapshot := m.Snapshot()
	result.Submitted = snapshot.SubmittedJobs
	result.Executed = snapshot.TotalJobs
	result.Completed = snapshot.SuccessJobs
	result.Panicked = snapshot.FailedJobs
	result.AvgLatency = snapshot.AverageLatency
	result.P99Latency = snapshot.P99Latency
	if secs := result.Duration.Seconds(); secs > 0 {
		result.JPS = float64(result.Executed) / secs
	}
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	return fmt.Sprintf(`
================================================================================
                         SCENARIO REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v
  Workers:        %d

JOB METRICS
-----------
  Submitted:        %d
  Executed:         %d
  Completed:        %d
  Panicked:         %d
  Jobs/sec:         %.2f
  Avg Latency:      %v
  P99 Latency:      %v

================================================================================`,
		r.ScenarioName,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.Workers,
		r.Submitted,
		r.Executed,
		r.Completed,
		r.Panicked,
		r.JPS,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
	)
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Metrics は直近の実行のメトリクスを返す
func (e *Engine) Metrics() *metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.metrics == nil {
		return nil
	}
	snapshot := e.metrics.Snapshot()
	return &snapshot
}

// Config はシナリオ設定を返す
func (e *Engine) Config() Config {
	return e.config
}
