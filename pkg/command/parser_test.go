package command

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		name           string
		text           string
		wantKind       Kind
		wantAction     Action
		wantReplicas   int
	}{
		{"bare help", "help", KindHelp, ActionNone, 0},
		{"help takes precedence over scale", "help me scale to 3", KindHelp, ActionNone, 0},
		{"dry run scale", "dry run scale to 3", KindDryRun, ActionScale, 3},
		{"what if phrasing", "what if we scale to 10", KindDryRun, ActionScale, 10},
		{"simulate restart", "simulate a restart", KindDryRun, ActionRestart, 0},
		{"dry run with no action", "dry run nothing in particular", KindDryRun, ActionNone, 0},
		{"scale to n", "scale the deployment to 3", KindExecute, ActionScale, 3},
		{"scale to zero", "please scale to 0", KindExecute, ActionScale, 0},
		{"scale out of bounds not clamped", "scale to 99", KindExecute, ActionScale, 99},
		{"restart", "restart it please", KindExecute, ActionRestart, 0},
		{"unrecognized is read", "what is going on", KindRead, ActionNone, 0},
		{"empty is read", "", KindRead, ActionNone, 0},
		{"case folded", "  SCALE TO 5  ", KindExecute, ActionScale, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.text)
			if got.Kind != tc.wantKind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tc.wantKind)
			}
			if got.Action != tc.wantAction {
				t.Fatalf("Action = %v, want %v", got.Action, tc.wantAction)
			}
			if got.TargetReplicas != tc.wantReplicas {
				t.Fatalf("TargetReplicas = %v, want %v", got.TargetReplicas, tc.wantReplicas)
			}
		})
	}
}

func TestParseIsDeterministic(t *testing.T) {
	for _, text := range []string{"scale to 3", "help", "restart", "what if we restart"} {
		first := Parse(text)
		second := Parse(text)
		if first != second {
			t.Fatalf("Parse(%q) not deterministic: %+v != %+v", text, first, second)
		}
	}
}
