package worker

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidSize is the panic cause when a pool is built with size <= 0
	ErrInvalidSize = errors.New("worker: pool size must be positive")
	// ErrPoolClosed is returned (or panicked by Execute) once Stop has begun
	ErrPoolClosed = errors.New("worker: pool is stopped")
	// ErrNilJob is returned (or panicked by Execute) for a nil job
	ErrNilJob = errors.New("worker: nil job")
)

// JobPanicError はジョブ内で発生したpanicを表す
type JobPanicError struct {
	WorkerID int
	JobID    string
	Value    any
	Stack    []byte
}

func (e *JobPanicError) Error() string {
	return fmt.Sprintf("job %s panicked on worker %d: %v", e.JobID, e.WorkerID, e.Value)
}

// Unwrap はpanic値がerrorならそれを返す
func (e *JobPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
