package slack

import (
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"

	"github.com/wisbric/kubeops/pkg/chatapi"
)

// ResponseBlocks renders a gate Response into Slack Block Kit blocks. For
// a DRY_RUN preview of an executable action, it attaches a "confirm"
// button whose value is the literal command text to resend through the
// gate as an EXECUTE request.
func ResponseBlocks(resp *chatapi.Response) []goslack.Block {
	switch resp.Kind {
	case "HELP":
		return helpBlocks(resp.Help)
	case "READ":
		return readBlocks(resp.Read)
	case "DRY_RUN":
		return dryRunBlocks(resp.DryRun)
	case "EXECUTE":
		return executeBlocks(resp.Execute)
	default:
		return []goslack.Block{textSection(fmt.Sprintf("Unrecognized response kind %q.", resp.Kind))}
	}
}

func helpBlocks(p *chatapi.HelpPayload) []goslack.Block {
	blocks := []goslack.Block{
		goslack.NewHeaderBlock(goslack.NewTextBlockObject(goslack.PlainTextType, "kubeops", true, false)),
		textSection(strings.Join(p.Commands, "\n")),
	}
	return blocks
}

func readBlocks(p *chatapi.ReadPayload) []goslack.Block {
	text := fmt.Sprintf("*Worker:* %s · *Queue length:* %d", p.WorkerStatus, p.QueueLength)
	blocks := []goslack.Block{textSection(text)}
	if p.Status != nil {
		blocks = append(blocks, textSection(fmt.Sprintf(
			"*Replicas:* %d/%d ready\n*Pods:* %d", p.Status.ReadyReplicas, p.Status.Replicas, len(p.Status.Pods))))
	}
	return blocks
}

func dryRunBlocks(p *chatapi.DryRunPayload) []goslack.Block {
	text := fmt.Sprintf("*Dry run:* %s", p.Action)
	if p.Action == "SCALE" {
		text += fmt.Sprintf(" to %d replicas", p.TargetReplicas)
		if p.CurrentReplicas != nil {
			text += fmt.Sprintf(" (currently %d, %s)", *p.CurrentReplicas, p.Direction)
		}
	}
	blocks := []goslack.Block{textSection(text)}

	for _, w := range p.Warnings {
		blocks = append(blocks, textSection("⚠️ "+w))
	}

	commandText := p.Action
	if p.Action == "SCALE" {
		commandText = fmt.Sprintf("scale to %d", p.TargetReplicas)
	} else if p.Action == "RESTART" {
		commandText = "restart"
	}

	confirmBtn := goslack.NewButtonBlockElement("confirm_command", commandText,
		goslack.NewTextBlockObject(goslack.PlainTextType, "Confirm", true, false))
	confirmBtn.Style = goslack.StyleDanger
	blocks = append(blocks, goslack.NewActionBlock("dry_run_confirm", confirmBtn))

	return blocks
}

func executeBlocks(p *chatapi.ExecutePayload) []goslack.Block {
	return []goslack.Block{textSection(fmt.Sprintf(
		"✅ Command accepted. *Execution ID:* `%s` · *Priority:* %d · *Queue position:* %d",
		p.ExecutionID, p.Priority, p.QueuePosition))}
}

// ResultBlocks renders the outcome of a completed EXECUTE command, posted
// by the Notifier to the configured result channel.
func ResultBlocks(executionID, phase, detail string) []goslack.Block {
	emoji := "ℹ️"
	switch phase {
	case "completed":
		emoji = "✅"
	case "failed":
		emoji = "❌"
	}
	text := fmt.Sprintf("%s Execution `%s` %s.", emoji, executionID, phase)
	if detail != "" {
		text += "\n" + detail
	}
	return []goslack.Block{textSection(text)}
}

func textSection(text string) goslack.Block {
	return goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
		nil, nil,
	)
}
