package chatapi

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/wisbric/kubeops/pkg/command"
	"github.com/wisbric/kubeops/pkg/execstate"
	"github.com/wisbric/kubeops/pkg/k8sop"
	"github.com/wisbric/kubeops/pkg/policy"
	"github.com/wisbric/kubeops/pkg/queue"
)

func newGate(t *testing.T, freeQuota int) *Gate {
	t.Helper()
	r := int32(2)
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "kubeops-target", Namespace: "kubeops"},
		Spec:       appsv1.DeploymentSpec{Replicas: &r},
		Status:     appsv1.DeploymentStatus{Replicas: 2, ReadyReplicas: 2},
	}
	client := fake.NewSimpleClientset(dep)
	adapter := k8sop.New(client, "kubeops", "kubeops-target", time.Second)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(policy.NewGate(freeQuota, nil), queue.New(nil), adapter, execstate.New(), nil, nil, logger)
}

func TestHelpTakesPrecedenceOverScale(t *testing.T) {
	g := newGate(t, 3)
	resp, gerr := g.Handle(context.Background(), Request{UserID: "u1", Message: "help me scale to 3"})
	if gerr != nil {
		t.Fatalf("unexpected error: %v", gerr)
	}
	if resp.Kind != string(command.KindHelp) {
		t.Fatalf("Kind = %v, want HELP", resp.Kind)
	}
}

func TestDryRunWarnsOnOutOfBoundsTarget(t *testing.T) {
	g := newGate(t, 3)
	resp, gerr := g.Handle(context.Background(), Request{UserID: "u1", Message: "dry run scale to 99"})
	if gerr != nil {
		t.Fatalf("unexpected error: %v", gerr)
	}
	if resp.Kind != string(command.KindDryRun) {
		t.Fatalf("Kind = %v, want DRY_RUN", resp.Kind)
	}
	if len(resp.DryRun.Warnings) == 0 {
		t.Fatal("expected an out-of-bounds warning")
	}
	// DRY_RUN must never enqueue.
	if n := g.queue.Len(); n != 0 {
		t.Fatalf("queue length = %d, want 0 (dry run must not enqueue)", n)
	}
}

func TestExecuteRejectsOutOfBoundsScale(t *testing.T) {
	g := newGate(t, 3)
	_, gerr := g.Handle(context.Background(), Request{UserID: "u1", Message: "scale to 99"})
	if gerr == nil {
		t.Fatal("expected a validation error")
	}
	if gerr.Code != ErrValidation {
		t.Fatalf("Code = %v, want VALIDATION_ERROR", gerr.Code)
	}
}

func TestAdminOutranksFreeUser(t *testing.T) {
	g := newGate(t, 3)

	freeResp, gerr := g.Handle(context.Background(), Request{UserID: "free-user", Message: "scale to 2"})
	if gerr != nil {
		t.Fatalf("unexpected error: %v", gerr)
	}
	adminResp, gerr := g.Handle(context.Background(), Request{UserID: "admin-user", TokenClaimsAdmin: true, Message: "scale to 2"})
	if gerr != nil {
		t.Fatalf("unexpected error: %v", gerr)
	}

	if adminResp.Execute.Priority >= freeResp.Execute.Priority {
		t.Fatalf("admin priority %d should be lower (scheduled sooner) than free priority %d",
			adminResp.Execute.Priority, freeResp.Execute.Priority)
	}
}

func TestQuotaExhaustionRejectsFourthExecute(t *testing.T) {
	g := newGate(t, 3)
	wantRemaining := []int{2, 1, 0}

	for i := 0; i < 3; i++ {
		resp, gerr := g.Handle(context.Background(), Request{UserID: "quota-user", Message: "restart"})
		if gerr != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, gerr)
		}
		if resp.Execute.Priority != policy.PriorityFree {
			t.Fatalf("request %d: priority = %d, want %d (still FREE)", i+1, resp.Execute.Priority, policy.PriorityFree)
		}
		if resp.Execute.User.QuotaRemaining == nil || *resp.Execute.User.QuotaRemaining != wantRemaining[i] {
			t.Fatalf("request %d: quotaRemaining = %v, want %d", i+1, resp.Execute.User.QuotaRemaining, wantRemaining[i])
		}
	}

	_, gerr := g.Handle(context.Background(), Request{UserID: "quota-user", Message: "restart"})
	if gerr == nil {
		t.Fatal("expected the 4th request to be rejected")
	}
	if gerr.Code != ErrQuotaExceeded {
		t.Fatalf("Code = %v, want QUOTA_EXCEEDED", gerr.Code)
	}
}

func TestReadNeverEnqueues(t *testing.T) {
	g := newGate(t, 3)
	resp, gerr := g.Handle(context.Background(), Request{UserID: "u1", Message: "what is going on"})
	if gerr != nil {
		t.Fatalf("unexpected error: %v", gerr)
	}
	if resp.Kind != string(command.KindRead) {
		t.Fatalf("Kind = %v, want READ", resp.Kind)
	}
	if n := g.queue.Len(); n != 0 {
		t.Fatalf("queue length = %d, want 0", n)
	}
}

func TestEmptyMessageIsValidationError(t *testing.T) {
	g := newGate(t, 3)
	_, gerr := g.Handle(context.Background(), Request{UserID: "u1", Message: ""})
	if gerr == nil || gerr.Code != ErrValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", gerr)
	}
}

func TestMissingIdentityIsAuthRequired(t *testing.T) {
	g := newGate(t, 3)
	_, gerr := g.Handle(context.Background(), Request{Message: "status"})
	if gerr == nil || gerr.Code != ErrAuthRequired {
		t.Fatalf("expected AUTH_REQUIRED, got %v", gerr)
	}
}
