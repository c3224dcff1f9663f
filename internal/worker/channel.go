package worker

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
)

// envelope は投入されたジョブとそのメタデータ
type envelope struct {
	id       string
	job      Job
	enqueued time.Time
}

// jobQueue は送信側と受信側が共有する上限なしのFIFO
type jobQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    *deque.Deque[envelope]
	closed   bool
}

// sender はジョブチャネルの送信側
type sender struct {
	q *jobQueue
}

// receiver はジョブチャネルの受信側
type receiver struct {
	q *jobQueue
}

// newJobChannel は送信側と受信側の組を作成する
func newJobChannel() (*sender, *receiver) {
	q := &jobQueue{items: deque.New[envelope]()}
	q.notEmpty = sync.NewCond(&q.mu)
	return &sender{q: q}, &receiver{q: q}
}

// send はジョブを末尾に追加する。容量待ちでブロックすることはない
func (s *sender) send(e envelope) error {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()

	if s.q.closed {
		return ErrPoolClosed
	}
	s.q.items.PushBack(e)
	s.q.notEmpty.Signal()
	return nil
}

// close は送信側を手放す。キューが空になった時点で切断状態になる
func (s *sender) close() {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()

	s.q.closed = true
	s.q.notEmpty.Broadcast()
}

// recv はジョブが届くか切断されるまでブロックする
// 切断（送信側なし かつ キューが空）の場合は ok=false を返す
func (r *receiver) recv() (e envelope, ok bool) {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()

	for r.q.items.Len() == 0 && !r.q.closed {
		r.q.notEmpty.Wait()
	}
	if r.q.items.Len() == 0 {
		return envelope{}, false
	}
	return r.q.items.PopFront(), true
}

// len はキュー内のジョブ数を返す
func (r *receiver) len() int {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	return r.q.items.Len()
}

// sharedReceiver は全ワーカーで共有される受信側
// 取り出しは一度に1ワーカーのみ
type sharedReceiver struct {
	mu sync.Mutex
	rx *receiver
}

func (s *sharedReceiver) recv() (envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rx.recv()
}
