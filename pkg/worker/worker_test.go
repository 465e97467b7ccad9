package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes/fake"
	ktesting "k8s.io/client-go/testing"

	"github.com/wisbric/kubeops/pkg/command"
	"github.com/wisbric/kubeops/pkg/execstate"
	"github.com/wisbric/kubeops/pkg/k8sop"
	"github.com/wisbric/kubeops/pkg/mutex"
	"github.com/wisbric/kubeops/pkg/queue"
)

type recordingAudit struct {
	mu      sync.Mutex
	entries []string
}

func (a *recordingAudit) Log(phase, executionID, commandID, userID, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, phase)
}

func (a *recordingAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// newTestAdapter returns an Adapter backed by a fake clientset whose patch
// reactor converges the deployment's observed status onto a scale patch's
// requested replicas, simulating a healthy controller so Scale's
// post-mutation status() verification succeeds.
func newTestAdapter(replicas int32) *k8sop.Adapter {
	r := replicas
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "kubeops-target", Namespace: "kubeops"},
		Spec:       appsv1.DeploymentSpec{Replicas: &r},
		Status:     appsv1.DeploymentStatus{Replicas: r, ReadyReplicas: r},
	}
	client := fake.NewSimpleClientset(dep)
	client.PrependReactor("patch", "deployments", func(action ktesting.Action) (bool, runtime.Object, error) {
		pa := action.(ktesting.PatchAction)
		obj, err := client.Tracker().Get(action.GetResource(), action.GetNamespace(), pa.GetName())
		if err != nil {
			return true, nil, err
		}
		d := obj.(*appsv1.Deployment).DeepCopy()

		switch pa.GetPatchType() {
		case types.JSONPatchType:
			var ops []struct {
				Op    string `json:"op"`
				Path  string `json:"path"`
				Value int32  `json:"value"`
			}
			if err := json.Unmarshal(pa.GetPatch(), &ops); err != nil {
				return true, nil, err
			}
			for _, op := range ops {
				if op.Path == "/spec/replicas" {
					v := op.Value
					d.Spec.Replicas = &v
					d.Status.Replicas = v
					d.Status.ReadyReplicas = v
				}
			}
		case types.StrategicMergePatchType:
			var sm struct {
				Spec struct {
					Template struct {
						Metadata struct {
							Annotations map[string]string `json:"annotations"`
						} `json:"metadata"`
					} `json:"template"`
				} `json:"spec"`
			}
			if err := json.Unmarshal(pa.GetPatch(), &sm); err != nil {
				return true, nil, err
			}
			if d.Spec.Template.Annotations == nil {
				d.Spec.Template.Annotations = map[string]string{}
			}
			for k, v := range sm.Spec.Template.Metadata.Annotations {
				d.Spec.Template.Annotations[k] = v
			}
		}

		if err := client.Tracker().Update(action.GetResource(), d, action.GetNamespace()); err != nil {
			return true, nil, err
		}
		return true, d, nil
	})

	a := k8sop.New(client, "kubeops", "kubeops-target", time.Second)
	a.WithVerifyDelay(time.Millisecond)
	return a
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorkerExecutesAndRecordsSuccess(t *testing.T) {
	q := queue.New(nil)
	state := execstate.New()
	audit := &recordingAudit{}
	w := New(q, mutex.New(), newTestAdapter(1), state, audit, nil, silentLogger())

	cmd := &queue.ScheduledCommand{
		ID: "cmd-1", ExecutionID: "exec-1", UserID: "alice", Priority: 1,
		Parsed: command.Parsed{Kind: command.KindExecute, Action: command.ActionScale, TargetReplicas: 3},
	}
	q.Enqueue(cmd)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		snap := state.Snapshot()
		if snap.LastResult != nil && snap.LastResult.CommandID == "cmd-1" {
			if snap.LastResult.Status != execstate.ResultSuccess {
				t.Fatalf("status = %v, want SUCCESS", snap.LastResult.Status)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for command to complete")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := w.GracefulShutdown(time.Second); err != nil {
		t.Fatalf("GracefulShutdown: %v", err)
	}

	if audit.count() < 2 {
		t.Fatalf("expected at least executing+completed audit entries, got %d", audit.count())
	}
}

type recordingMetrics struct {
	mu           sync.Mutex
	mutexHolds   int
	adapterCalls int
	lastOutcome  string
}

func (m *recordingMetrics) ObserveMutexHold(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutexHolds++
}

func (m *recordingMetrics) ObserveAdapterCall(op, outcome string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapterCalls++
	m.lastOutcome = outcome
}

func TestWorkerReportsMetrics(t *testing.T) {
	q := queue.New(nil)
	state := execstate.New()
	metrics := &recordingMetrics{}
	w := New(q, mutex.New(), newTestAdapter(1), state, nil, metrics, silentLogger())

	q.Enqueue(&queue.ScheduledCommand{
		ID: "cmd-m", ExecutionID: "exec-m", UserID: "carol", Priority: 1,
		Parsed: command.Parsed{Kind: command.KindExecute, Action: command.ActionRestart},
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		snap := state.Snapshot()
		if snap.LastResult != nil && snap.LastResult.CommandID == "cmd-m" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for command to complete")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := w.GracefulShutdown(time.Second); err != nil {
		t.Fatalf("GracefulShutdown: %v", err)
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.mutexHolds != 1 {
		t.Fatalf("mutexHolds = %d, want 1", metrics.mutexHolds)
	}
	if metrics.adapterCalls != 1 {
		t.Fatalf("adapterCalls = %d, want 1", metrics.adapterCalls)
	}
	if metrics.lastOutcome != "success" {
		t.Fatalf("lastOutcome = %q, want success", metrics.lastOutcome)
	}
}

func TestWorkerSerializesMutualExclusion(t *testing.T) {
	q := queue.New(nil)
	state := execstate.New()
	w := New(q, mutex.New(), newTestAdapter(1), state, nil, nil, silentLogger())

	const n = 10
	for i := 0; i < n; i++ {
		q.Enqueue(&queue.ScheduledCommand{
			ID: "cmd", ExecutionID: "exec", UserID: "bob", Priority: 2,
			Timestamp: time.Now(),
			Parsed:    command.Parsed{Kind: command.KindExecute, Action: command.ActionRestart},
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	defer cancel()

	deadline := time.After(3 * time.Second)
	for q.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("timed out draining queue")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// After the queue drains, the worker must have returned to idle with
	// the mutex free — invariant I2.
	time.Sleep(20 * time.Millisecond)
	snap := state.Snapshot()
	if snap.WorkerStatus != execstate.WorkerIdle || snap.MutexStatus != execstate.MutexFree {
		t.Fatalf("expected idle/free after drain, got %+v", snap)
	}
}
