package command

import (
	"regexp"
	"strconv"
	"strings"
)

var scaleToPattern = regexp.MustCompile(`scale.*\bto\s+(\d+)\b`)

var helpPattern = regexp.MustCompile(`\bhelp\b`)

// Parse classifies free text into a Parsed command. It is pure, total, and
// deterministic: the same input always yields the same output, and no
// input is rejected outright — unrecognized text classifies as READ.
func Parse(text string) Parsed {
	raw := strings.TrimSpace(text)
	folded := strings.ToLower(raw)

	p := Parsed{RawText: raw}

	switch {
	case folded == "help" || helpPattern.MatchString(folded):
		p.Kind = KindHelp
		return p

	case strings.HasPrefix(folded, "dry run ") ||
		strings.Contains(folded, "what happens") ||
		strings.Contains(folded, "what if") ||
		strings.Contains(folded, "simulate"):
		p.Kind = KindDryRun
		remainder := strings.TrimPrefix(folded, "dry run ")
		if action, replicas, ok := matchExecute(remainder); ok {
			p.Action = action
			p.TargetReplicas = replicas
		}
		return p

	default:
		if action, replicas, ok := matchExecute(folded); ok {
			p.Kind = KindExecute
			p.Action = action
			p.TargetReplicas = replicas
			return p
		}
		p.Kind = KindRead
		return p
	}
}

// matchExecute applies rules 3 and 4 (scale, then restart) to already
// case-folded text and reports whether either matched.
func matchExecute(folded string) (Action, int, bool) {
	if strings.Contains(folded, "scale") {
		if m := scaleToPattern.FindStringSubmatch(folded); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				// No clamping here: bounds are enforced downstream by the
				// policy gate and the Kubernetes adapter.
				return ActionScale, n, true
			}
		}
	}
	if strings.Contains(folded, "restart") {
		return ActionRestart, 0, true
	}
	return ActionNone, 0, false
}
