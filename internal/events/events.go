// Package events provides an event system for pool lifecycle notifications.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventWorkerStarted is emitted when a worker goroutine enters its loop
	EventWorkerStarted EventType = "worker_started"
	// EventWorkerStopped is emitted when a worker observes disconnection and exits
	EventWorkerStopped EventType = "worker_stopped"
	// EventJobPanicked is emitted when a job panics and the worker recovers
	EventJobPanicked EventType = "job_panicked"
	// EventPoolStopped is emitted after every worker has been joined
	EventPoolStopped EventType = "pool_stopped"
	// EventConnectionServed is emitted when the connection server answers a request
	EventConnectionServed EventType = "connection_served"
)

// Event represents a pool or server event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	WorkerID  int       `json:"worker_id"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	JobID    string `json:"job_id,omitempty"`
	Error    string `json:"error,omitempty"`
	Remote   string `json:"remote,omitempty"`
	Status   int    `json:"status,omitempty"`
	Path     string `json:"path,omitempty"`
	Duration string `json:"duration,omitempty"`
	Workers  int    `json:"workers,omitempty"`
}

// NewWorkerStartedEvent creates a worker started event
func NewWorkerStartedEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerStarted,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewWorkerStoppedEvent creates a worker stopped event
func NewWorkerStoppedEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerStopped,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewJobPanickedEvent creates a job panicked event
func NewJobPanickedEvent(workerID int, jobID string, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventJobPanicked,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			JobID: jobID,
			Error: errMsg,
		},
	}
}

// NewPoolStoppedEvent creates a pool stopped event
func NewPoolStoppedEvent(workers int) Event {
	return Event{
		Type:      EventPoolStopped,
		Timestamp: time.Now(),
		WorkerID:  -1,
		Data: EventData{
			Workers: workers,
		},
	}
}

// NewConnectionServedEvent creates a connection served event.
// The worker is unknown to the server, so WorkerID is -1.
func NewConnectionServedEvent(remote, path string, status int, elapsed time.Duration) Event {
	return Event{
		Type:      EventConnectionServed,
		Timestamp: time.Now(),
		WorkerID:  -1,
		Data: EventData{
			Remote:   remote,
			Path:     path,
			Status:   status,
			Duration: elapsed.String(),
		},
	}
}
