package kube

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"
)

func pod(name string, phase corev1.PodPhase, statuses ...corev1.ContainerStatus) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default", Labels: map[string]string{"app": name}},
		Spec: corev1.PodSpec{
			NodeName:   "node-1",
			Containers: []corev1.Container{{Name: "app"}},
		},
		Status: corev1.PodStatus{Phase: phase, ContainerStatuses: statuses},
	}
}

func ready(restarts int32) corev1.ContainerStatus {
	return corev1.ContainerStatus{
		Name: "app", Image: "nginx:1.27", Ready: true, RestartCount: restarts,
		State: corev1.ContainerState{Running: &corev1.ContainerStateRunning{}},
	}
}

func waiting(reason string, restarts int32) corev1.ContainerStatus {
	return corev1.ContainerStatus{
		Name: "app", Image: "nginx:nope", RestartCount: restarts,
		State: corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: reason}},
		LastTerminationState: corev1.ContainerState{
			Terminated: &corev1.ContainerStateTerminated{Reason: "OOMKilled"},
		},
	}
}

func TestListPods_HealthHeuristic(t *testing.T) {
	client := fake.NewSimpleClientset(
		pod("web-ok", corev1.PodRunning, ready(0)),
		pod("web-restarted", corev1.PodRunning, ready(2)),
		pod("api-crash", corev1.PodRunning, waiting("CrashLoopBackOff", 5)),
		pod("job-pending", corev1.PodPending),
	)

	pods, err := ListPods(context.Background(), client, "default", Filters{})
	require.NoError(t, err)
	require.Len(t, pods, 4)
	assert.Equal(t, "api-crash", pods[0].Name)

	bad := Unhealthy(pods)
	names := make([]string, 0, len(bad))
	for _, p := range bad {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"api-crash", "job-pending", "web-restarted"}, names)

	crash := pods[0]
	assert.Equal(t, "CrashLoopBackOff", crash.Status())
	assert.Equal(t, "Running", crash.Phase)
	assert.Equal(t, int32(5), crash.Restarts)
	assert.False(t, crash.Ready)
	assert.Equal(t, "OOMKilled", crash.Containers[0].LastStateReason)
}

func TestListPods_Filters(t *testing.T) {
	client := fake.NewSimpleClientset(
		pod("web-1", corev1.PodRunning, ready(0)),
		pod("web-2", corev1.PodRunning, ready(0)),
		pod("api-1", corev1.PodRunning, ready(0)),
	)

	pods, err := ListPods(context.Background(), client, "default", Filters{IncludePods: "web-*", ExcludePods: "web-2"})
	require.NoError(t, err)
	require.Len(t, pods, 1)
	assert.Equal(t, "web-1", pods[0].Name)
}

func TestListPods_Error(t *testing.T) {
	client := fake.NewSimpleClientset()
	client.PrependReactor("list", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("forbidden")
	})

	_, err := ListPods(context.Background(), client, "default", Filters{})
	assert.ErrorContains(t, err, "forbidden")
}

func TestGetPod(t *testing.T) {
	client := fake.NewSimpleClientset(pod("web-1", corev1.PodRunning, ready(0)))

	p, err := GetPod(context.Background(), client, "default", "web-1")
	require.NoError(t, err)
	assert.True(t, p.Healthy())

	_, err = GetPod(context.Background(), client, "default", "missing")
	assert.Error(t, err)
}

func TestPodLogs_FakeClient(t *testing.T) {
	client := fake.NewSimpleClientset(pod("web-1", corev1.PodRunning, ready(0)))
	out := PodLogs(context.Background(), client, "default", "web-1", 50)
	assert.Equal(t, "fake logs", out)
}

func TestLogsWithFallback(t *testing.T) {
	var calls []bool
	out := logsWithFallback(func(previous bool) (string, error) {
		calls = append(calls, previous)
		if !previous {
			return "", errors.New("container is waiting to start")
		}
		return "panic: nil map", nil
	})
	assert.Equal(t, "panic: nil map", out)
	assert.Equal(t, []bool{false, true}, calls)

	out = logsWithFallback(func(previous bool) (string, error) {
		return "", errors.New("gone")
	})
	assert.Equal(t, "", out)

	out = logsWithFallback(func(previous bool) (string, error) {
		if previous {
			t.Fatal("previous logs requested although current logs exist")
		}
		return "ok", nil
	})
	assert.Equal(t, "ok", out)
}

func TestPodEvents(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := func(name, obj, typ, reason, msg string, at time.Time, count int32) *corev1.Event {
		return &corev1.Event{
			ObjectMeta:     metav1.ObjectMeta{Name: name, Namespace: "default"},
			InvolvedObject: corev1.ObjectReference{Kind: "Pod", Name: obj},
			Type:           typ,
			Reason:         reason,
			Message:        msg,
			Count:          count,
			Source:         corev1.EventSource{Component: "kubelet"},
			LastTimestamp:  metav1.NewTime(at),
		}
	}
	client := fake.NewSimpleClientset(
		ev("e2", "api", "Warning", "BackOff", "Back-off restarting failed container", now, 7),
		ev("e1", "api", "Normal", "Pulled", "Successfully pulled image", now.Add(-time.Minute), 1),
		ev("e3", "other", "Warning", "Failed", "unrelated", now, 1),
	)

	out := PodEvents(context.Background(), client, "default", "api")
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Pulled")
	assert.Contains(t, lines[1], "Warning")
	assert.Contains(t, lines[1], "Back-off restarting failed container (x7)")
	assert.NotContains(t, out, "unrelated")
}

func TestPodUsage(t *testing.T) {
	p := pod("api", corev1.PodRunning, ready(0))
	p.Spec.Containers[0].Resources.Limits = corev1.ResourceList{
		corev1.ResourceCPU:    resource.MustParse("500m"),
		corev1.ResourceMemory: resource.MustParse("128Mi"),
	}
	client := fake.NewSimpleClientset(p)
	mc := metricsfake.NewSimpleClientset(&metricsv1beta1.PodMetrics{
		ObjectMeta: metav1.ObjectMeta{Name: "api", Namespace: "default"},
		Containers: []metricsv1beta1.ContainerMetrics{{
			Name: "app",
			Usage: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse("250m"),
				corev1.ResourceMemory: resource.MustParse("120Mi"),
			},
		}},
	})

	u := PodUsage(context.Background(), client, mc, "default", "api")
	require.NotNil(t, u)
	assert.Equal(t, int64(250), u.CPUMilli)
	assert.Equal(t, "cpu 250m (limit 500m), memory 120Mi (limit 128Mi, 93%)", u.String())

	assert.Nil(t, PodUsage(context.Background(), client, mc, "default", "missing"))
	assert.Nil(t, PodUsage(context.Background(), client, nil, "default", "api"))
}

func TestSuggestNextStep(t *testing.T) {
	base := PodInfo{Name: "api", Namespace: "prod", Phase: "Running", Ready: true}

	imagePull := base
	imagePull.Reason = "ImagePullBackOff"
	assert.Equal(t, "kubectl describe pod api -n prod | grep -A 5 'Events:'", SuggestNextStep(imagePull, ""))

	restarted := base
	restarted.Restarts = 3
	assert.Equal(t, "kubectl logs api -n prod --previous", SuggestNextStep(restarted, "memory limit too low"))
	assert.Contains(t, SuggestNextStep(restarted, "The image pull failed"), "describe pod")

	notReady := base
	notReady.Ready = false
	assert.Equal(t, "kubectl get pod api -n prod -o yaml", SuggestNextStep(notReady, ""))

	assert.Equal(t, "kubectl describe pod api -n prod", SuggestNextStep(base, ""))
}

func TestParseServiceRef(t *testing.T) {
	ref, err := ParseServiceRef("ai/ollama:11434")
	require.NoError(t, err)
	assert.Equal(t, ServiceRef{Namespace: "ai", Name: "ollama", Port: 11434}, ref)
	assert.Equal(t, "ai/ollama:11434", ref.String())

	ref, err = ParseServiceRef("ollama:80")
	require.NoError(t, err)
	assert.Equal(t, "default", ref.Namespace)

	for _, bad := range []string{"ollama", "ai/ollama:x", "ai/:80", "/ollama:80", "ai/ollama:70000"} {
		_, err := ParseServiceRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestBackingPod(t *testing.T) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: "ollama", Namespace: "default"},
		Spec:       corev1.ServiceSpec{Selector: map[string]string{"app": "ollama"}},
	}
	client := fake.NewSimpleClientset(svc,
		pod("ollama", corev1.PodRunning, ready(0)),
		pod("web", corev1.PodRunning, ready(0)),
	)

	name, err := backingPod(context.Background(), client, ServiceRef{Namespace: "default", Name: "ollama", Port: 11434})
	require.NoError(t, err)
	assert.Equal(t, "ollama", name)

	_, err = backingPod(context.Background(), client, ServiceRef{Namespace: "default", Name: "missing", Port: 1})
	assert.Error(t, err)
}
