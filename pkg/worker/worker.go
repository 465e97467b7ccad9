// Package worker owns the queue→mutex→adapter execution loop: the single
// long-lived goroutine that performs all EXECUTE work serially.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wisbric/kubeops/pkg/command"
	"github.com/wisbric/kubeops/pkg/execstate"
	"github.com/wisbric/kubeops/pkg/k8sop"
	"github.com/wisbric/kubeops/pkg/mutex"
	"github.com/wisbric/kubeops/pkg/queue"
)

// AuditSink receives a fire-and-forget record of one lifecycle phase
// transition. Implementations must never block the caller (invariant I9).
type AuditSink interface {
	Log(phase, executionID, commandID, userID, detail string)
}

// Metrics receives mutex hold and adapter call durations. A nil Metrics is
// a valid no-op.
type Metrics interface {
	ObserveMutexHold(seconds float64)
	ObserveAdapterCall(op, outcome string, seconds float64)
}

const pollInterval = 25 * time.Millisecond

// Worker drains the priority queue and serializes all cluster mutations
// behind a single mutex. Construct with New; start exactly one per process
// via Start (the bootstrap package enforces that guarantee).
type Worker struct {
	queue   *queue.Queue
	mutex   *mutex.FIFO
	adapter *k8sop.Adapter
	state   *execstate.Registry
	audit   AuditSink
	metrics Metrics
	logger  *slog.Logger

	done chan struct{}
}

// New constructs a Worker. audit and metrics may be nil.
func New(q *queue.Queue, m *mutex.FIFO, adapter *k8sop.Adapter, state *execstate.Registry, audit AuditSink, metrics Metrics, logger *slog.Logger) *Worker {
	return &Worker{
		queue:   q,
		mutex:   m,
		adapter: adapter,
		state:   state,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
	}
}

// Start launches the run loop in its own goroutine. It stops dequeuing new
// commands once ctx is cancelled, but a command already dequeued always
// runs to completion — cancellation is never allowed to abandon a
// RUNNING command (invariant I4).
func (w *Worker) Start(ctx context.Context) {
	w.done = make(chan struct{})
	go w.run(ctx)
}

// GracefulShutdown waits up to timeout for the run loop to exit after its
// context has been cancelled. It never cancels an in-flight adapter call.
func (w *Worker) GracefulShutdown(timeout time.Duration) error {
	select {
	case <-w.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("worker: graceful shutdown timed out after %s", timeout)
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		cmd, ok := w.queue.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				continue
			}
		}

		w.execute(cmd)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// execute runs exactly one ScheduledCommand under the mutex. The mutex is
// always released, even if the adapter call panics, preserving invariant
// I2 (mutexStatus and workerStatus never drift apart).
func (w *Worker) execute(cmd *queue.ScheduledCommand) {
	w.mutex.Acquire()
	heldAt := time.Now()
	defer func() {
		w.mutex.Release()
		if w.metrics != nil {
			w.metrics.ObserveMutexHold(time.Since(heldAt).Seconds())
		}
	}()

	w.state.SetExecuting(execstate.CurrentCommand{
		CommandID:         cmd.ID,
		ExecutionID:       cmd.ExecutionID,
		Action:            string(cmd.Parsed.Action),
		RequestedReplicas: cmd.Parsed.TargetReplicas,
		Priority:          cmd.Priority,
		StartedAt:         time.Now(),
	})
	w.logAudit("executing", cmd, "")

	err := w.runAdapter(cmd)

	result := execstate.Result{CommandID: cmd.ID, CompletedAt: time.Now()}
	if err != nil {
		result.Status = execstate.ResultFailed
		result.Error = err.Error()
		w.logger.Error("command execution failed",
			"execution_id", cmd.ExecutionID, "command_id", cmd.ID,
			"action", cmd.Parsed.Action, "error", err)
		w.logAudit("failed", cmd, err.Error())
	} else {
		result.Status = execstate.ResultSuccess
		w.logger.Info("command execution succeeded",
			"execution_id", cmd.ExecutionID, "command_id", cmd.ID, "action", cmd.Parsed.Action)
		w.logAudit("completed", cmd, "")
	}

	w.state.RecordResult(result)
	w.state.SetIdle()
}

func (w *Worker) runAdapter(cmd *queue.ScheduledCommand) error {
	ctx := context.Background()
	started := time.Now()

	var err error
	switch cmd.Parsed.Action {
	case command.ActionScale:
		err = w.adapter.Scale(ctx, cmd.Parsed.TargetReplicas)
	case command.ActionRestart:
		err = w.adapter.Restart(ctx)
	default:
		err = fmt.Errorf("unsupported EXECUTE action %q", cmd.Parsed.Action)
	}

	if w.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		w.metrics.ObserveAdapterCall(string(cmd.Parsed.Action), outcome, time.Since(started).Seconds())
	}
	return err
}

func (w *Worker) logAudit(phase string, cmd *queue.ScheduledCommand, detail string) {
	if w.audit == nil {
		return
	}
	w.audit.Log(phase, cmd.ExecutionID, cmd.ID, cmd.UserID, detail)
}
