// Package worker provides a fixed-size goroutine pool for fire-and-forget jobs.
//
// The Pool owns N worker goroutines that are spawned at construction and
// live until Stop. Workers compete for jobs on a single unbounded queue; the
// consuming end of that queue is shared under a mutex so only one worker
// dequeues at a time, and the job itself runs outside that lock.
//
// # Basic Usage
//
//	pool := worker.NewPool(4) // 4 workers, panics if size <= 0
//	defer pool.Stop()
//
//	for i := 0; i < 100; i++ {
//	    pool.Execute(func() {
//	        // do work
//	    })
//	}
//
// # Configuration
//
// Use NewPoolWithConfig to attach a logger, metrics, an event bus or a
// panic callback:
//
//	pool := worker.NewPoolWithConfig(worker.PoolConfig{
//	    Size:    8,
//	    Metrics: m,
//	    Events:  bus,
//	    OnPanic: func(err *worker.JobPanicError) { ... },
//	})
//
// # Graceful Shutdown
//
// Stop closes submission, lets the queue drain, and joins every worker in
// creation order. It is not cancellation: every job already queued or
// running completes before Stop returns. Stop runs once; later calls are
// no-ops. Execute after Stop panics with ErrPoolClosed, Submit returns it.
//
// # Failing Jobs
//
// A panicking job is recovered inside its worker and reported as a
// *JobPanicError through the logger, metrics, event bus and OnPanic. The
// worker keeps serving, so the pool never shrinks. A job that calls
// runtime.Goexit is counted as failed and its worker continues on a fresh
// goroutine under the same id.
//
// Stop must not be called from inside a job: it waits for that job's worker.
package worker
