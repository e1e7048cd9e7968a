package kube

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Usage is the current resource consumption of a pod next to its limits.
type Usage struct {
	CPUMilli    int64 `json:"cpuMilli"`
	MemoryBytes int64 `json:"memoryBytes"`
	CPULimit    int64 `json:"cpuLimitMilli,omitempty"`
	MemoryLimit int64 `json:"memoryLimitBytes,omitempty"`
}

// String renders usage for a prompt, e.g.
// "cpu 250m (limit 500m), memory 120Mi (limit 128Mi, 93%)".
func (u Usage) String() string {
	cpu := fmt.Sprintf("cpu %dm", u.CPUMilli)
	if u.CPULimit > 0 {
		cpu += fmt.Sprintf(" (limit %dm)", u.CPULimit)
	}
	mem := "memory " + mebibytes(u.MemoryBytes)
	if u.MemoryLimit > 0 {
		mem += fmt.Sprintf(" (limit %s, %d%%)", mebibytes(u.MemoryLimit), u.MemoryBytes*100/u.MemoryLimit)
	}
	return cpu + ", " + mem
}

func mebibytes(b int64) string {
	return fmt.Sprintf("%dMi", b/(1024*1024))
}

// PodUsage reads pod metrics from metrics.k8s.io and the limits from the pod
// spec. It returns nil when metrics-server is unavailable.
func PodUsage(ctx context.Context, cs kubernetes.Interface, mc metricsclient.Interface, namespace, name string) *Usage {
	if mc == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	pm, err := mc.MetricsV1beta1().PodMetricses(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil
	}

	u := &Usage{}
	for _, c := range pm.Containers {
		u.CPUMilli += c.Usage.Cpu().MilliValue()
		u.MemoryBytes += c.Usage.Memory().Value()
	}

	if cs != nil {
		if pod, err := cs.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{}); err == nil {
			u.CPULimit, u.MemoryLimit = podLimits(pod)
		}
	}
	return u
}

// podLimits sums container limits; a container without a limit makes the
// pod total unbounded (0).
func podLimits(pod *corev1.Pod) (cpuMilli, memBytes int64) {
	cpuBounded, memBounded := true, true
	for _, c := range pod.Spec.Containers {
		if q, ok := c.Resources.Limits[corev1.ResourceCPU]; ok {
			cpuMilli += q.MilliValue()
		} else {
			cpuBounded = false
		}
		if q, ok := c.Resources.Limits[corev1.ResourceMemory]; ok {
			memBytes += q.Value()
		} else {
			memBounded = false
		}
	}
	if !cpuBounded || len(pod.Spec.Containers) == 0 {
		cpuMilli = 0
	}
	if !memBounded || len(pod.Spec.Containers) == 0 {
		memBytes = 0
	}
	return cpuMilli, memBytes
}
