// Package execstate holds the process-wide, in-memory observability
// snapshot of the control plane: what the worker is doing right now, how
// long the queue is, and the outcome of the most recent execution. It is
// intentionally the only state external status queries ever read — the
// worker and queue never block on it and it is never a source of truth for
// scheduling.
package execstate

import (
	"sync"
	"time"
)

// WorkerStatus is the worker's current activity.
type WorkerStatus string

const (
	WorkerIdle      WorkerStatus = "idle"
	WorkerExecuting WorkerStatus = "executing"
)

// MutexStatus mirrors the mutex's lock state for observability.
type MutexStatus string

const (
	MutexFree   MutexStatus = "free"
	MutexLocked MutexStatus = "locked"
)

// ResultStatus is the terminal or in-flight status of a command.
type ResultStatus string

const (
	ResultPending ResultStatus = "PENDING"
	ResultRunning ResultStatus = "RUNNING"
	ResultSuccess ResultStatus = "SUCCESS"
	ResultFailed  ResultStatus = "FAILED"
)

// CurrentCommand is a sanitized view of whatever the worker is presently
// executing. Per the sanitized-command contract (§4.8/Glossary) it never
// carries raw user text or identity — no user ID, no command text — only
// {action, requestedReplicas} plus the bookkeeping IDs needed to correlate
// it with the audit trail.
type CurrentCommand struct {
	CommandID         string    `json:"commandId"`
	ExecutionID       string    `json:"executionId"`
	Action            string    `json:"action"`
	RequestedReplicas int       `json:"requestedReplicas,omitempty"`
	Priority          int       `json:"priority"`
	StartedAt         time.Time `json:"startedAt"`
}

// Result is the outcome of one command's execution.
type Result struct {
	CommandID   string       `json:"commandId"`
	Status      ResultStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	CompletedAt time.Time    `json:"completedAt"`
}

// Registry is the process-singleton execution state. The zero value is not
// usable; construct with New.
type Registry struct {
	mu          sync.RWMutex
	workerState WorkerStatus
	mutexState  MutexStatus
	queueLen    int
	current     *CurrentCommand
	lastResult  *Result
	lastError   string
	startedAt   time.Time
}

// New returns an idle, empty Registry timestamped at process start.
func New() *Registry {
	return &Registry{
		workerState: WorkerIdle,
		mutexState:  MutexFree,
		startedAt:   time.Now(),
	}
}

// SetQueueLength records the current priority queue length. Called by the
// queue on every enqueue/dequeue.
func (r *Registry) SetQueueLength(n int) {
	r.mu.Lock()
	r.queueLen = n
	r.mu.Unlock()
}

// SetExecuting marks the worker as busy running cmd.
func (r *Registry) SetExecuting(cmd CurrentCommand) {
	r.mu.Lock()
	r.workerState = WorkerExecuting
	r.mutexState = MutexLocked
	r.current = &cmd
	r.mu.Unlock()
}

// SetIdle marks the worker as idle and clears the current command.
func (r *Registry) SetIdle() {
	r.mu.Lock()
	r.workerState = WorkerIdle
	r.mutexState = MutexFree
	r.current = nil
	r.mu.Unlock()
}

// RecordResult stores the outcome of a completed command and, on failure,
// the last error message.
func (r *Registry) RecordResult(res Result) {
	r.mu.Lock()
	r.lastResult = &res
	if res.Status == ResultFailed {
		r.lastError = res.Error
	}
	r.mu.Unlock()
}

// Snapshot is a deep-copied, point-in-time view of the registry, safe to
// hand to an HTTP handler without further locking.
type Snapshot struct {
	WorkerStatus WorkerStatus
	MutexStatus  MutexStatus
	QueueLength  int
	Current      *CurrentCommand
	LastResult   *Result
	LastError    string
	Uptime       time.Duration
}

// Snapshot returns a deep copy of the current state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		WorkerStatus: r.workerState,
		MutexStatus:  r.mutexState,
		QueueLength:  r.queueLen,
		LastError:    r.lastError,
		Uptime:       time.Since(r.startedAt),
	}
	if r.current != nil {
		cur := *r.current
		s.Current = &cur
	}
	if r.lastResult != nil {
		res := *r.lastResult
		s.LastResult = &res
	}
	return s
}
