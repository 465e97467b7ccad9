package slack

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// Notifier posts EXECUTE command outcomes to a configured result channel.
// It is a one-way observer of the worker's lifecycle — the worker never
// awaits it (invariant I9 applies equally to outbound Slack notifications).
type Notifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewNotifier creates a Slack Notifier. If botToken is empty, the notifier
// is a noop (logging only) — matching the behavior when SLACK_BOT_TOKEN
// is unset.
func NewNotifier(botToken, channel string, logger *slog.Logger) *Notifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &Notifier{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// IsEnabled returns true if the notifier has a valid Slack client and a
// configured result channel.
func (n *Notifier) IsEnabled() bool {
	return n.client != nil && n.channel != ""
}

// PostResult posts the outcome of one EXECUTE command to the configured
// result channel. It never returns an error the caller must handle —
// failures are logged, since this is fire-and-forget by design.
func (n *Notifier) PostResult(ctx context.Context, executionID, phase, detail string) {
	if !n.IsEnabled() {
		n.logger.Debug("slack notifier disabled, skipping result post",
			"execution_id", executionID, "phase", phase)
		return
	}

	blocks := ResultBlocks(executionID, phase, detail)
	opts := []goslack.MsgOption{
		goslack.MsgOptionBlocks(blocks...),
		goslack.MsgOptionText(fmt.Sprintf("execution %s %s", executionID, phase), false),
	}

	if _, _, err := n.client.PostMessageContext(ctx, n.channel, opts...); err != nil {
		n.logger.Error("posting execution result to slack", "error", err,
			"execution_id", executionID, "phase", phase)
		return
	}

	n.logger.Info("posted execution result to slack", "execution_id", executionID, "phase", phase)
}

// Log implements the worker's AuditSink interface so a Notifier can be
// composed into the worker's audit fan-out alongside the durable Postgres
// writer. Only the terminal "completed"/"failed" phases produce a Slack
// post; "queued"/"executing" would be noise in a result channel.
func (n *Notifier) Log(phase, executionID, _, _, detail string) {
	if phase != "completed" && phase != "failed" {
		return
	}
	n.PostResult(context.Background(), executionID, phase, detail)
}

// PostEphemeral posts an ephemeral message visible only to the specified user.
func (n *Notifier) PostEphemeral(ctx context.Context, channelID, userID, text string) error {
	if !n.IsEnabled() {
		return nil
	}

	_, err := n.client.PostEphemeralContext(ctx, channelID, userID, goslack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("posting ephemeral message: %w", err)
	}
	return nil
}
