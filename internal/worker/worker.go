package worker

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"threadpool/internal/events"
	"threadpool/internal/logger"
)

// workerHooks はワーカーループが利用する外部依存
type workerHooks struct {
	log    *logger.Logger
	events *events.Bus
	run    func(workerID int, e envelope)
}

// Worker はジョブを取り出して実行する常駐ゴルーチン
type Worker struct {
	id int

	mu   sync.Mutex
	done chan struct{} // 終了待ち用。join後はnil
}

// newWorker はワーカーを作成し、ループを開始する
func newWorker(id int, rx *sharedReceiver, hooks workerHooks) *Worker {
	w := &Worker{
		id:   id,
		done: make(chan struct{}),
	}
	if hooks.events != nil {
		hooks.events.Publish(events.NewWorkerStartedEvent(id))
	}
	go w.loop(rx, hooks, w.done)
	return w
}

// ID はワーカーIDを返す
func (w *Worker) ID() int {
	return w.id
}

// loop はジョブ待ち状態を繰り返す
// ジョブ受信で実行して戻り、切断で終了する
func (w *Worker) loop(rx *sharedReceiver, hooks workerHooks, done chan struct{}) {
	component := fmt.Sprintf("worker-%d", w.id)

	disconnected := false
	defer func() {
		if disconnected {
			close(done)
			return
		}
		// ジョブがruntime.Goexitを呼ぶとここに来る。同じIDで続きを担当する
		hooks.log.Warn(component, "Worker %d lost its goroutine to a job; restarting.", w.id)
		go w.loop(rx, hooks, done)
	}()

	for {
		// ロックは取り出しの間だけ保持し、実行中は解放しておく
		e, ok := rx.recv()
		if !ok {
			hooks.log.Info(component, "Worker %d disconnected; shutting down.", w.id)
			if hooks.events != nil {
				hooks.events.Publish(events.NewWorkerStoppedEvent(w.id))
			}
			disconnected = true
			return
		}

		hooks.log.Zap().Named(component).Debug(
			fmt.Sprintf("Worker %d got a job; executing.", w.id),
			zap.String("job_id", e.id),
		)
		hooks.run(w.id, e)
	}
}

// join はワーカーの終了を待つ。2回目以降は何もせず false を返す
func (w *Worker) join() bool {
	w.mu.Lock()
	done := w.done
	w.done = nil
	w.mu.Unlock()

	if done == nil {
		return false
	}
	<-done
	return true
}
