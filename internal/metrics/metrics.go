package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxLatencySamples = 1000

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int    // P99計算用のサンプル上限
	Namespace         string // Prometheusの名前空間
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		MaxLatencySamples: defaultMaxLatencySamples,
		Namespace:         "threadpool",
	}
}

// Metrics はジョブ実行のメトリクスを収集する
type Metrics struct {
	submittedJobs atomic.Uint64
	totalJobs     atomic.Uint64
	successJobs   atomic.Uint64
	failedJobs    atomic.Uint64
	totalLatency  atomic.Uint64
	busyWorkers   atomic.Int64
	queueDepth    atomic.Int64

	mu                sync.RWMutex
	startTime         time.Time
	lastResetTime     time.Time
	windowJobs        uint64
	latencies         []time.Duration
	maxLatencySamples int

	prom *collectors
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	samples := config.MaxLatencySamples
	if samples <= 0 {
		samples = defaultMaxLatencySamples
	}
	namespace := config.Namespace
	if namespace == "" {
		namespace = "threadpool"
	}
	now := time.Now()
	return &Metrics{
		startTime:         now,
		lastResetTime:     now,
		latencies:         make([]time.Duration, 0, samples),
		maxLatencySamples: samples,
		prom:              newCollectors(namespace),
	}
}

// RecordSubmit はキュー投入を記録する
func (m *Metrics) RecordSubmit() {
	m.submittedJobs.Add(1)
	m.queueDepth.Add(1)
	m.prom.submitted.Inc()
	m.prom.queueDepth.Inc()
}

// RecordDequeue はワーカーによる取り出しとキュー待ち時間を記録する
func (m *Metrics) RecordDequeue(wait time.Duration) {
	m.queueDepth.Add(-1)
	m.prom.queueDepth.Dec()
	m.prom.queueWait.Observe(wait.Seconds())
}

// WorkerBusy はワーカーがジョブ実行を開始したことを記録する
func (m *Metrics) WorkerBusy() {
	m.busyWorkers.Add(1)
	m.prom.busyWorkers.Inc()
}

// WorkerIdle はワーカーがジョブ実行を終えたことを記録する
func (m *Metrics) WorkerIdle() {
	m.busyWorkers.Add(-1)
	m.prom.busyWorkers.Dec()
}

// RecordSuccess は正常終了したジョブを記録する
func (m *Metrics) RecordSuccess(latency time.Duration) {
	m.totalJobs.Add(1)
	m.successJobs.Add(1)
	m.totalLatency.Add(uint64(latency.Nanoseconds()))
	m.prom.completed.Inc()
	m.prom.duration.Observe(latency.Seconds())

	m.mu.Lock()
	m.windowJobs++
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	}
	m.mu.Unlock()
}

// RecordFailure はpanicしたジョブを記録する
func (m *Metrics) RecordFailure(latency time.Duration) {
	m.totalJobs.Add(1)
	m.failedJobs.Add(1)
	m.totalLatency.Add(uint64(latency.Nanoseconds()))
	m.prom.panicked.Inc()
	m.prom.duration.Observe(latency.Seconds())

	m.mu.Lock()
	m.windowJobs++
	m.mu.Unlock()
}

// RecordError はpanicせずにエラーで終わったジョブを記録する
func (m *Metrics) RecordError(latency time.Duration) {
	m.totalJobs.Add(1)
	m.failedJobs.Add(1)
	m.totalLatency.Add(uint64(latency.Nanoseconds()))
	m.prom.errored.Inc()
	m.prom.duration.Observe(latency.Seconds())

	m.mu.Lock()
	m.windowJobs++
	m.mu.Unlock()
}

// SubmittedJobs は投入されたジョブ数を返す
func (m *Metrics) SubmittedJobs() uint64 {
	return m.submittedJobs.Load()
}

// TotalJobs は実行済みジョブ数を返す
func (m *Metrics) TotalJobs() uint64 {
	return m.totalJobs.Load()
}

// SuccessJobs は正常終了ジョブ数を返す
func (m *Metrics) SuccessJobs() uint64 {
	return m.successJobs.Load()
}

// FailedJobs はpanicしたジョブ数を返す
func (m *Metrics) FailedJobs() uint64 {
	return m.failedJobs.Load()
}

// BusyWorkers は実行中のワーカー数を返す
func (m *Metrics) BusyWorkers() int64 {
	return m.busyWorkers.Load()
}

// QueueDepth はキュー内のジョブ数を返す
func (m *Metrics) QueueDepth() int64 {
	return m.queueDepth.Load()
}

// JPS は現在のウィンドウのJobs Per Secondを返す
func (m *Metrics) JPS() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.lastResetTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.windowJobs) / elapsed
}

// OverallJPS は開始からの平均JPSを返す
func (m *Metrics) OverallJPS() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.totalJobs.Load()) / elapsed
}

// AverageLatency は平均実行時間を返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.totalJobs.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatency.Load() / total)
}

// P99Latency はP99実行時間を返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// FailureRate はpanic率を返す（0.0〜1.0）
func (m *Metrics) FailureRate() float64 {
	total := m.totalJobs.Load()
	if total == 0 {
		return 0
	}
	return float64(m.failedJobs.Load()) / float64(total)
}

// Reset はウィンドウメトリクスをリセットする
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windowJobs = 0
	m.lastResetTime = time.Now()
	m.latencies = m.latencies[:0]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	SubmittedJobs  uint64        `json:"submitted_jobs"`
	TotalJobs      uint64        `json:"total_jobs"`
	SuccessJobs    uint64        `json:"success_jobs"`
	FailedJobs     uint64        `json:"failed_jobs"`
	BusyWorkers    int64         `json:"busy_workers"`
	QueueDepth     int64         `json:"queue_depth"`
	JPS            float64       `json:"jps"`
	OverallJPS     float64       `json:"overall_jps"`
	AverageLatency time.Duration `json:"average_latency_ns"`
	P99Latency     time.Duration `json:"p99_latency_ns"`
	FailureRate    float64       `json:"failure_rate"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		SubmittedJobs:  m.SubmittedJobs(),
		TotalJobs:      m.TotalJobs(),
		SuccessJobs:    m.SuccessJobs(),
		FailedJobs:     m.FailedJobs(),
		BusyWorkers:    m.BusyWorkers(),
		QueueDepth:     m.QueueDepth(),
		JPS:            m.JPS(),
		OverallJPS:     m.OverallJPS(),
		AverageLatency: m.AverageLatency(),
		P99Latency:     m.P99Latency(),
		FailureRate:    m.FailureRate(),
		Elapsed:        time.Since(m.startTime),
	}
}
