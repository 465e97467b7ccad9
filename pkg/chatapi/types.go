package chatapi

import (
	"time"

	"github.com/wisbric/kubeops/pkg/k8sop"
	"github.com/wisbric/kubeops/pkg/queue"
)

// ErrorCode is the taxonomy every gate-level failure maps to.
type ErrorCode string

const (
	ErrUser           ErrorCode = "USER_ERROR"
	ErrAuthRequired   ErrorCode = "AUTH_REQUIRED"
	ErrAuthForbidden  ErrorCode = "AUTH_FORBIDDEN"
	ErrValidation     ErrorCode = "VALIDATION_ERROR"
	ErrQuotaExceeded  ErrorCode = "QUOTA_EXCEEDED"
	ErrKubernetes     ErrorCode = "KUBERNETES_ERROR"
	ErrTimeout        ErrorCode = "TIMEOUT"
	ErrSystem         ErrorCode = "SYSTEM_ERROR"
)

// GateError is returned by Gate.Handle when a request cannot be completed.
// HTTP and Slack front ends translate Code into their own status/shape.
type GateError struct {
	Code    ErrorCode
	Message string
}

func (e *GateError) Error() string { return e.Message }

// Request is the single shape every front end (HTTP, Slack, …) funnels
// into. No platform-specific field ever bypasses classification, quota,
// or bounds checking.
type Request struct {
	UserID           string
	TokenClaimsAdmin bool
	Message          string
	Source           queue.Source
}

// HelpPayload is returned for HELP commands.
type HelpPayload struct {
	Role     string   `json:"role"`
	Commands []string `json:"commands"`
}

// ReadPayload is returned for READ commands.
type ReadPayload struct {
	Status       *k8sop.Status `json:"status,omitempty"`
	WorkerStatus string        `json:"workerStatus"`
	QueueLength  int           `json:"queueLength"`
}

// DryRunPayload is returned for DRY_RUN commands. Status is nil if the
// current status could not be fetched (best-effort, non-fatal).
type DryRunPayload struct {
	Action          string   `json:"action"`
	Direction       string   `json:"direction,omitempty"`
	TargetReplicas  int      `json:"targetReplicas"`
	CurrentReplicas *int32   `json:"currentReplicas,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// ExecutePayload is returned when an EXECUTE command is accepted. Before is
// a best-effort pre-execution snapshot (nil if it could not be fetched);
// after is never populated here — the gate returns before the worker runs,
// so the post-execution state is only ever visible via the audit trail or
// /internal/status, never in the acceptance response itself.
type ExecutePayload struct {
	CommandID     string        `json:"commandId"`
	ExecutionID   string        `json:"executionId"`
	Priority      int           `json:"priority"`
	PriorityLabel string        `json:"priorityLabel"`
	QueuePosition int           `json:"queuePosition"`
	AcceptedAt    time.Time     `json:"acceptedAt"`
	Before        *k8sop.Status `json:"before,omitempty"`
	User          ExecuteUser   `json:"user"`
}

// ExecuteUser is the caller-facing identity summary attached to an EXECUTE
// acceptance (§6.1 `user.role`/`user.quotaRemaining`). QuotaRemaining is
// nil for ADMIN callers, who are not subject to the FREE-tier quota.
type ExecuteUser struct {
	Role           string `json:"role"`
	QuotaRemaining *int   `json:"quotaRemaining,omitempty"`
}

// Response is a tagged union: exactly one of the payload fields is set,
// matching Kind.
type Response struct {
	Kind    string          `json:"kind"`
	Help    *HelpPayload    `json:"help,omitempty"`
	Read    *ReadPayload    `json:"read,omitempty"`
	DryRun  *DryRunPayload  `json:"dryRun,omitempty"`
	Execute *ExecutePayload `json:"execute,omitempty"`
}
