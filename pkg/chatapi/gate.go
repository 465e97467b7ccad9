// Package chatapi is the API boundary / policy gate: the single funnel
// every front end (HTTP, Slack, …) passes through. It authenticates
// nothing itself — callers supply an already-verified UserID — but it owns
// parsing, classification, quota/bounds enforcement, and the HELP/READ/
// DRY_RUN/EXECUTE branch. It never awaits worker completion.
package chatapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/kubeops/pkg/command"
	"github.com/wisbric/kubeops/pkg/execstate"
	"github.com/wisbric/kubeops/pkg/k8sop"
	"github.com/wisbric/kubeops/pkg/policy"
	"github.com/wisbric/kubeops/pkg/queue"
)

// AuditSink receives a fire-and-forget record of one lifecycle phase
// transition. Implementations must never block the caller (invariant I9).
type AuditSink interface {
	Log(phase, executionID, commandID, userID, detail string)
}

// Metrics receives classification counts. Implementations must be
// non-blocking; a nil Metrics is a valid no-op.
type Metrics interface {
	ObserveClassified(kind string)
}

// Gate wires the parser, policy, queue, adapter, and execution state
// registry into the single request pipeline described by the control
// plane's API boundary.
type Gate struct {
	policy  *policy.Gate
	queue   *queue.Queue
	adapter *k8sop.Adapter
	state   *execstate.Registry
	audit   AuditSink
	metrics Metrics
	logger  *slog.Logger
}

// New constructs a Gate. audit and metrics may be nil.
func New(p *policy.Gate, q *queue.Queue, adapter *k8sop.Adapter, state *execstate.Registry, audit AuditSink, metrics Metrics, logger *slog.Logger) *Gate {
	return &Gate{policy: p, queue: q, adapter: adapter, state: state, audit: audit, metrics: metrics, logger: logger}
}

// Handle classifies req.Message and executes the matching branch. It never
// blocks on worker completion: EXECUTE commands are enqueued and the
// acceptance payload is returned immediately.
func (g *Gate) Handle(ctx context.Context, req Request) (*Response, *GateError) {
	if req.UserID == "" {
		return nil, &GateError{Code: ErrAuthRequired, Message: "no authenticated identity"}
	}
	if req.Message == "" {
		return nil, &GateError{Code: ErrValidation, Message: "message is required"}
	}

	identity := g.policy.Resolve(req.UserID, req.TokenClaimsAdmin)
	parsed := command.Parse(req.Message)

	if g.metrics != nil {
		g.metrics.ObserveClassified(string(parsed.Kind))
	}

	switch parsed.Kind {
	case command.KindHelp:
		return g.handleHelp(identity), nil
	case command.KindRead:
		return g.handleRead(ctx), nil
	case command.KindDryRun:
		return g.handleDryRun(ctx, parsed), nil
	case command.KindExecute:
		return g.handleExecute(ctx, req, identity, parsed)
	default:
		return nil, &GateError{Code: ErrSystem, Message: fmt.Sprintf("unclassified command kind %q", parsed.Kind)}
	}
}

func (g *Gate) handleHelp(identity policy.Identity) *Response {
	commands := []string{
		"help — show this message",
		"status — read the current deployment status",
		"dry run scale to <N> — preview a scale without applying it",
		"scale to <N> — scale the deployment (1-5 replicas)",
		"restart — roll the deployment",
	}
	if identity.Role != policy.RoleAdmin {
		commands = append(commands, fmt.Sprintf("quota remaining: %d", g.policy.QuotaRemaining(identity.UserID)))
	}
	return &Response{
		Kind: string(command.KindHelp),
		Help: &HelpPayload{Role: string(identity.Role), Commands: commands},
	}
}

func (g *Gate) handleRead(ctx context.Context) *Response {
	snap := g.state.Snapshot()
	payload := &ReadPayload{
		WorkerStatus: string(snap.WorkerStatus),
		QueueLength:  snap.QueueLength,
	}

	status, err := g.adapter.StatusSnapshot(ctx)
	if err != nil {
		g.logger.Warn("read: fetching cluster status failed", "error", err)
	} else {
		payload.Status = status
	}

	return &Response{Kind: string(command.KindRead), Read: payload}
}

func (g *Gate) handleDryRun(ctx context.Context, parsed command.Parsed) *Response {
	payload := &DryRunPayload{
		Action:         string(parsed.Action),
		TargetReplicas: parsed.TargetReplicas,
	}

	status, err := g.adapter.StatusSnapshot(ctx)
	if err != nil {
		g.logger.Warn("dry run: fetching cluster status failed", "error", err)
	} else {
		current := status.Replicas
		payload.CurrentReplicas = &current
		if parsed.Action == command.ActionScale {
			switch {
			case int32(parsed.TargetReplicas) > current:
				payload.Direction = "scale-up"
			case int32(parsed.TargetReplicas) < current:
				payload.Direction = "scale-down"
			default:
				payload.Direction = "no-change"
			}
		}
	}

	if parsed.Action == command.ActionScale &&
		(parsed.TargetReplicas < k8sop.MinReplicas || parsed.TargetReplicas > k8sop.MaxReplicas) {
		payload.Warnings = append(payload.Warnings, fmt.Sprintf(
			"requested replicas %d is outside the allowed range [%d,%d] and would be rejected if executed",
			parsed.TargetReplicas, k8sop.MinReplicas, k8sop.MaxReplicas))
	}

	return &Response{Kind: string(command.KindDryRun), DryRun: payload}
}

func (g *Gate) handleExecute(ctx context.Context, req Request, identity policy.Identity, parsed command.Parsed) (*Response, *GateError) {
	if parsed.Action == command.ActionScale &&
		(parsed.TargetReplicas < k8sop.MinReplicas || parsed.TargetReplicas > k8sop.MaxReplicas) {
		return nil, &GateError{
			Code: ErrValidation,
			Message: fmt.Sprintf("replicas must be between %d and %d", k8sop.MinReplicas, k8sop.MaxReplicas),
		}
	}

	// RoleNormal denotes a non-admin caller whose free-tier quota is
	// exhausted; EXECUTE is rejected here before any priority or command
	// ID is ever computed.
	if identity.Role == policy.RoleNormal {
		return nil, &GateError{Code: ErrQuotaExceeded, Message: "free-tier execution quota exhausted"}
	}

	priority := policy.PriorityFor(identity.Role)
	commandID := uuid.NewString()
	executionID := uuid.NewString()

	var before *k8sop.Status
	if snap, err := g.adapter.StatusSnapshot(ctx); err != nil {
		g.logger.Warn("execute: snapshotting pre-execution status failed", "error", err, "execution_id", executionID)
	} else {
		before = snap
	}

	// Priority above used the pre-increment view, per spec.md §9's resolved
	// Open Question. The quotaRemaining reported back to the caller is the
	// post-increment count of what this very acceptance just spent (scenario
	// #4: three accepted FREE EXECUTEs report quotaRemaining 2, 1, 0).
	var quotaRemaining *int
	if identity.Role == policy.RoleFree {
		g.policy.IncrementQuota(identity.UserID)
		remaining := g.policy.QuotaRemaining(identity.UserID)
		quotaRemaining = &remaining
	}

	scheduled := &queue.ScheduledCommand{
		ID:          commandID,
		ExecutionID: executionID,
		UserID:      identity.UserID,
		Priority:    priority,
		Timestamp:   time.Now(),
		Parsed:      parsed,
		Source:      req.Source,
	}
	g.queue.Enqueue(scheduled)
	queuePosition := g.queue.Len()

	if g.audit != nil {
		g.audit.Log("queued", executionID, commandID, identity.UserID, string(parsed.Action))
	}

	g.logger.Info("command enqueued",
		"execution_id", executionID, "command_id", commandID, "user_id", identity.UserID,
		"priority", priority, "action", parsed.Action)

	return &Response{
		Kind: string(command.KindExecute),
		Execute: &ExecutePayload{
			CommandID:     commandID,
			ExecutionID:   executionID,
			Priority:      priority,
			PriorityLabel: policy.PriorityLabel(priority),
			QueuePosition: queuePosition,
			AcceptedAt:    time.Now(),
			Before:        before,
			User: ExecuteUser{
				Role:           string(identity.Role),
				QuotaRemaining: quotaRemaining,
			},
		},
	}, nil
}
