// Package k8sop is the sole point of cluster mutation in the control
// plane (invariant I5). Namespace, deployment name, and replica bounds
// are process-wide constants — no command payload can alter them
// (invariant I6). Client construction follows the standard client-go
// in-cluster/kubeconfig bootstrap used across operator-shaped tooling.
package k8sop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	// MinReplicas and MaxReplicas bound every scale operation regardless
	// of what the caller requested (invariant I7).
	MinReplicas = 1
	MaxReplicas = 5

	restartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"
)

// BoundsError reports a replica count outside [MinReplicas, MaxReplicas].
type BoundsError struct {
	Requested int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("requested replicas %d outside bounds [%d,%d]", e.Requested, MinReplicas, MaxReplicas)
}

// TimeoutError wraps a cluster call that was abandoned after exceeding its
// per-call deadline.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("kubernetes call %q timed out", e.Op)
}

// VerificationError reports that a mutation was accepted by the API server
// but post-mutation verification did not observe the expected state.
type VerificationError struct {
	Op      string
	Wanted  string
	Observed string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verifying %s: wanted %s, observed %s", e.Op, e.Wanted, e.Observed)
}

// Pod is a minimal, read-only view of one pod backing the deployment.
type Pod struct {
	Name      string     `json:"name"`
	StartTime *time.Time `json:"startTime,omitempty"`
}

// Status is a point-in-time snapshot of the target deployment. It is never
// cached.
type Status struct {
	Replicas      int32 `json:"replicas"`
	ReadyReplicas int32 `json:"readyReplicas"`
	Pods          []Pod `json:"pods"`
}

// Adapter performs scale/restart/status operations against exactly one
// namespace/deployment pair, fixed at construction.
type Adapter struct {
	client      kubernetes.Interface
	namespace   string
	deployment  string
	timeout     time.Duration
	verifyDelay time.Duration
}

// defaultScaleVerifyDelay is the grace period Scale waits after a
// successful patch before reading back status() to verify the cluster's
// observed state actually converged (spec.md §4.5's "short grace delay
// (≈1s)").
const defaultScaleVerifyDelay = time.Second

// NewClientset builds a Kubernetes clientset, preferring in-cluster
// service-account credentials and falling back to a local kubeconfig.
func NewClientset(kubeconfigPath string) (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("building kubernetes config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes clientset: %w", err)
	}
	return clientset, nil
}

// New returns an Adapter fixed to namespace/deployment. timeout <= 0 falls
// back to a 15s default per-call deadline.
func New(client kubernetes.Interface, namespace, deployment string, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Adapter{
		client:      client,
		namespace:   namespace,
		deployment:  deployment,
		timeout:     timeout,
		verifyDelay: defaultScaleVerifyDelay,
	}
}

// Namespace returns the adapter's fixed namespace.
func (a *Adapter) Namespace() string { return a.namespace }

// Deployment returns the adapter's fixed deployment name.
func (a *Adapter) Deployment() string { return a.deployment }

// WithVerifyDelay overrides the grace delay Scale waits before its
// post-mutation status() read. Production wiring leaves the spec's ~1s
// default; tests use it to avoid sleeping on every case.
func (a *Adapter) WithVerifyDelay(d time.Duration) *Adapter {
	a.verifyDelay = d
	return a
}

// Scale patches the deployment's replica count to replicas, which must lie
// within [MinReplicas, MaxReplicas]. After the patch is accepted, it waits
// a short grace delay and re-reads status() to verify the cluster actually
// converged on the requested count — a patch response only echoes back the
// desired spec we just sent, so it can never disagree with itself; only an
// independent status() read can surface a mutation that the API server
// accepted but the cluster never realized (spec.md §4.5, scenario #5).
func (a *Adapter) Scale(ctx context.Context, replicas int) error {
	if replicas < MinReplicas || replicas > MaxReplicas {
		return &BoundsError{Requested: replicas}
	}

	patchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	patch, err := json.Marshal([]map[string]any{
		{"op": "replace", "path": "/spec/replicas", "value": replicas},
	})
	if err != nil {
		return fmt.Errorf("encoding scale patch: %w", err)
	}

	_, err = a.client.AppsV1().Deployments(a.namespace).Patch(
		patchCtx, a.deployment, types.JSONPatchType, patch, metav1.PatchOptions{},
	)
	if err != nil {
		if patchCtx.Err() != nil {
			return &TimeoutError{Op: "scale"}
		}
		return fmt.Errorf("patching deployment replicas: %w", err)
	}

	return a.verifyScale(ctx, replicas)
}

// verifyScale implements the post-condition the worker relies on: a grace
// delay for the cluster to converge, then an independent status() read
// whose observed replica count must match what was requested.
func (a *Adapter) verifyScale(ctx context.Context, replicas int) error {
	select {
	case <-time.After(a.verifyDelay):
	case <-ctx.Done():
		return &TimeoutError{Op: "scale"}
	}

	status, err := a.StatusSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("verifying scale: %w", err)
	}
	if status.Replicas != int32(replicas) {
		return &VerificationError{
			Op:       "scale",
			Wanted:   fmt.Sprintf("%d", replicas),
			Observed: fmt.Sprintf("%d", status.Replicas),
		}
	}
	return nil
}

// Restart applies a strategic-merge patch that sets the pod template's
// restartedAt annotation, triggering a rolling restart.
func (a *Adapter) Restart(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	patch := fmt.Sprintf(
		`{"spec":{"template":{"metadata":{"annotations":{%q:%q}}}}}`,
		restartedAtAnnotation, now,
	)

	dep, err := a.client.AppsV1().Deployments(a.namespace).Patch(
		ctx, a.deployment, types.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{},
	)
	if err != nil {
		if ctx.Err() != nil {
			return &TimeoutError{Op: "restart"}
		}
		return fmt.Errorf("patching deployment for restart: %w", err)
	}

	got := dep.Spec.Template.Annotations[restartedAtAnnotation]
	if got != now {
		return &VerificationError{Op: "restart", Wanted: now, Observed: got}
	}
	return nil
}

// StatusSnapshot reads the deployment and its pods. It is a read-only
// operation and is safe to call from any request path.
func (a *Adapter) StatusSnapshot(ctx context.Context) (*Status, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	dep, err := a.client.AppsV1().Deployments(a.namespace).Get(ctx, a.deployment, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("deployment %s/%s not found: %w", a.namespace, a.deployment, err)
		}
		if ctx.Err() != nil {
			return nil, &TimeoutError{Op: "status"}
		}
		return nil, fmt.Errorf("getting deployment: %w", err)
	}

	pods, err := a.client.CoreV1().Pods(a.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("app=%s", a.deployment),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TimeoutError{Op: "status"}
		}
		return nil, fmt.Errorf("listing pods: %w", err)
	}

	status := &Status{
		Replicas:      dep.Status.Replicas,
		ReadyReplicas: dep.Status.ReadyReplicas,
	}
	for _, p := range pods.Items {
		status.Pods = append(status.Pods, podSummary(p))
	}
	return status, nil
}

func podSummary(p corev1.Pod) Pod {
	s := Pod{Name: p.Name}
	if p.Status.StartTime != nil {
		t := p.Status.StartTime.Time
		s.StartTime = &t
	}
	return s
}
