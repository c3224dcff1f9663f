package worker

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/metrics"
)

// Job はワーカーが一度だけ実行するジョブを表す
type Job func()

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	Size    int                  // ワーカー数（1以上）
	Logger  *logger.Logger       // nilでlogger.Current()
	Metrics *metrics.Metrics     // nilで未登録のメトリクスを作成
	Events  *events.Bus          // nilでイベント発行なし
	OnPanic func(*JobPanicError) // ジョブがpanicした時に呼ばれる
}

// Pool は固定数のワーカーを管理する
type Pool struct {
	workers []*Worker
	rx      *sharedReceiver

	mu     sync.RWMutex
	sender *sender // Stop後はnil

	log     *logger.Logger
	metrics *metrics.Metrics
	events  *events.Bus
	onPanic func(*JobPanicError)

	busy     atomic.Int32
	stopped  atomic.Bool
	stopOnce sync.Once
}

// NewPool は size 個のワーカーを持つプールを作成する
// size が 0 以下の場合は panic する
func NewPool(size int) *Pool {
	return NewPoolWithConfig(PoolConfig{Size: size})
}

// NewPoolWithConfig は設定を指定してプールを作成し、全ワーカーを起動する
func NewPoolWithConfig(config PoolConfig) *Pool {
	if config.Size <= 0 {
		panic(errors.Wrapf(ErrInvalidSize, "got %d", config.Size))
	}

	log := config.Logger
	if log == nil {
		log = logger.Current()
	}
	m := config.Metrics
	if m == nil {
		m = metrics.New()
	}

	tx, rx := newJobChannel()
	p := &Pool{
		rx:      &sharedReceiver{rx: rx},
		sender:  tx,
		log:     log,
		metrics: m,
		events:  config.Events,
		onPanic: config.OnPanic,
	}

	hooks := workerHooks{
		log:    log,
		events: config.Events,
		run:    p.run,
	}
	p.workers = make([]*Worker, 0, config.Size)
	for id := range config.Size {
		p.workers = append(p.workers, newWorker(id, p.rx, hooks))
	}

	log.Info("pool", "Pool started with %d workers", config.Size)
	return p
}

// Execute はジョブをキューに投入する
// Stop後の呼び出しやnilジョブはプログラミングエラーとして panic する
func (p *Pool) Execute(job Job) {
	if err := p.Submit(job); err != nil {
		panic(err)
	}
}

// Submit はジョブをキューに投入する
// Stop後は ErrPoolClosed を返す
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return ErrNilJob
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.sender == nil {
		return ErrPoolClosed
	}

	e := envelope{
		id:       uuid.NewString(),
		job:      job,
		enqueued: time.Now(),
	}
	// 取り出しより先に記録しないとキュー深さが負になりうる
	// sender はRLock中に閉じられないので send は失敗しない
	p.metrics.RecordSubmit()
	return p.sender.send(e)
}

// Stop はプールを停止する。2回目以降の呼び出しは何もしない
// 新規投入を止め、キュー内と実行中のジョブが終わるまで全ワーカーを作成順に待つ
// ジョブの中から呼んではならない
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		tx := p.sender
		p.sender = nil
		p.stopped.Store(true)
		p.mu.Unlock()

		tx.close()

		for _, w := range p.workers {
			p.log.Info("pool", "Shutting down worker %d", w.id)
			w.join()
		}

		if p.events != nil {
			p.events.Publish(events.NewPoolStoppedEvent(len(p.workers)))
		}
		p.log.Info("pool", "Pool stopped")
	})
}

// run は1つのジョブを実行し、結果を記録する
func (p *Pool) run(workerID int, e envelope) {
	p.metrics.RecordDequeue(time.Since(e.enqueued))
	p.metrics.WorkerBusy()
	p.busy.Add(1)

	start := time.Now()
	returned := false
	defer func() {
		p.busy.Add(-1)
		p.metrics.WorkerIdle()
		// runtime.Goexit はrecoverできず、ここまで戻らない
		if !returned {
			p.metrics.RecordError(time.Since(start))
			p.log.Warn("pool", "Worker %d: job %s exited via runtime.Goexit", workerID, e.id)
		}
	}()

	perr := invoke(workerID, e)
	elapsed := time.Since(start)
	returned = true

	if perr == nil {
		p.metrics.RecordSuccess(elapsed)
		return
	}

	p.metrics.RecordFailure(elapsed)
	p.log.Error("pool", "Worker %d recovered from job panic: %v", workerID, perr)
	if p.events != nil {
		p.events.Publish(events.NewJobPanickedEvent(workerID, e.id, perr))
	}
	if p.onPanic != nil {
		p.notifyPanic(perr)
	}
}

// notifyPanic はOnPanicを呼ぶ。コールバック自身のpanicはログに残して握りつぶす
func (p *Pool) notifyPanic(perr *JobPanicError) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pool", "OnPanic callback panicked for job %s: %v", perr.JobID, r)
		}
	}()
	p.onPanic(perr)
}

// invoke はジョブを呼び出し、panicを JobPanicError に変換する
func invoke(workerID int, e envelope) (perr *JobPanicError) {
	defer func() {
		if r := recover(); r != nil {
			perr = &JobPanicError{
				WorkerID: workerID,
				JobID:    e.id,
				Value:    r,
				Stack:    debug.Stack(),
			}
		}
	}()

	e.job()
	return nil
}

// Size はワーカー数を返す
func (p *Pool) Size() int {
	return len(p.workers)
}

// Workers はワーカーIDを作成順に返す
func (p *Pool) Workers() []int {
	ids := make([]int, len(p.workers))
	for i, w := range p.workers {
		ids[i] = w.id
	}
	return ids
}

// QueueLen はキュー内で待機中のジョブ数を返す
func (p *Pool) QueueLen() int {
	return p.rx.rx.len()
}

// Busy はジョブ実行中のワーカー数を返す
func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

// Stopped はStopが開始されたかどうかを返す
func (p *Pool) Stopped() bool {
	return p.stopped.Load()
}

// Metrics はプールのメトリクスを返す
func (p *Pool) Metrics() *metrics.Metrics {
	return p.metrics
}
