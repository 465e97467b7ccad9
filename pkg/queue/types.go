package queue

import (
	"time"

	"github.com/wisbric/kubeops/pkg/command"
)

// Source identifies which front end accepted a ScheduledCommand.
type Source string

const (
	SourceHTTP  Source = "http"
	SourceSlack Source = "slack"
)

// ScheduledCommand is an EXECUTE command awaiting or undergoing execution.
// It is immutable once created; the worker owns nothing about it beyond
// reading its fields.
type ScheduledCommand struct {
	ID          string
	ExecutionID string
	UserID      string
	Priority    int // lower value schedules sooner, see invariant I3
	Timestamp   time.Time
	Parsed      command.Parsed
	Source      Source
}
