// Package kube gathers pod state, logs, events and usage for the pod
// debugger.
package kube

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ContainerInfo describes a single container in a pod.
type ContainerInfo struct {
	Name            string `json:"name"`
	Image           string `json:"image"`
	Ready           bool   `json:"ready"`
	RestartCount    int32  `json:"restartCount"`
	State           string `json:"state,omitempty"`       // Waiting|Running|Terminated
	StateReason     string `json:"stateReason,omitempty"` // e.g. ImagePullBackOff
	LastState       string `json:"lastState,omitempty"`
	LastStateReason string `json:"lastStateReason,omitempty"` // e.g. OOMKilled
}

// PodInfo is the per-pod view used for triage and prompts.
type PodInfo struct {
	Namespace  string          `json:"namespace"`
	Name       string          `json:"name"`
	Phase      string          `json:"phase"`
	Reason     string          `json:"reason,omitempty"`
	Ready      bool            `json:"ready"`
	Restarts   int32           `json:"restarts"`
	NodeName   string          `json:"nodeName,omitempty"`
	Containers []ContainerInfo `json:"containers"`
}

// Healthy is true for a Running pod whose containers are all ready and
// have never restarted.
func (p PodInfo) Healthy() bool {
	return p.Phase == string(corev1.PodRunning) && p.Ready && p.Restarts == 0
}

// Status returns the most specific status: a container waiting or
// termination reason when there is one, else the pod phase.
func (p PodInfo) Status() string {
	if p.Reason != "" {
		return p.Reason
	}
	return p.Phase
}

// Filters controls which pods are considered.
type Filters struct {
	IncludePods string // comma-separated patterns with wildcard support
	ExcludePods string
}

// ListPods returns the pods of namespace that pass filters, sorted by name.
func ListPods(ctx context.Context, cs kubernetes.Interface, namespace string, filters Filters) ([]PodInfo, error) {
	list, err := cs.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}

	pods := make([]PodInfo, 0, len(list.Items))
	for i := range list.Items {
		p := &list.Items[i]
		if !matchesFilter(p.Name, filters.IncludePods, filters.ExcludePods) {
			continue
		}
		pods = append(pods, NewPodInfo(p))
	}
	sort.Slice(pods, func(i, j int) bool {
		if pods[i].Namespace != pods[j].Namespace {
			return pods[i].Namespace < pods[j].Namespace
		}
		return pods[i].Name < pods[j].Name
	})
	return pods, nil
}

// GetPod returns one pod.
func GetPod(ctx context.Context, cs kubernetes.Interface, namespace, name string) (PodInfo, error) {
	p, err := cs.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return PodInfo{}, fmt.Errorf("get pod %s/%s: %w", namespace, name, err)
	}
	return NewPodInfo(p), nil
}

// Unhealthy keeps the pods that fail the health heuristic.
func Unhealthy(pods []PodInfo) []PodInfo {
	var out []PodInfo
	for _, p := range pods {
		if !p.Healthy() {
			out = append(out, p)
		}
	}
	return out
}

// NewPodInfo flattens a pod.
func NewPodInfo(p *corev1.Pod) PodInfo {
	info := PodInfo{
		Namespace: p.Namespace,
		Name:      p.Name,
		Phase:     string(p.Status.Phase),
		Reason:    p.Status.Reason,
		NodeName:  p.Spec.NodeName,
		Ready:     len(p.Status.ContainerStatuses) > 0,
	}

	for _, cs := range p.Status.ContainerStatuses {
		info.Restarts += cs.RestartCount
		if !cs.Ready {
			info.Ready = false
		}

		c := ContainerInfo{
			Name:         cs.Name,
			Image:        cs.Image,
			Ready:        cs.Ready,
			RestartCount: cs.RestartCount,
		}

		if cs.State.Waiting != nil {
			c.State = "Waiting"
			c.StateReason = cs.State.Waiting.Reason
		} else if cs.State.Running != nil {
			c.State = "Running"
		} else if cs.State.Terminated != nil {
			c.State = "Terminated"
			c.StateReason = cs.State.Terminated.Reason
		}

		if cs.LastTerminationState.Terminated != nil {
			c.LastState = "Terminated"
			c.LastStateReason = cs.LastTerminationState.Terminated.Reason
		} else if cs.LastTerminationState.Waiting != nil {
			c.LastState = "Waiting"
			c.LastStateReason = cs.LastTerminationState.Waiting.Reason
		}

		// first failing container decides the pod reason
		if info.Reason == "" && c.StateReason != "" && c.StateReason != "Completed" {
			info.Reason = c.StateReason
		}
		info.Containers = append(info.Containers, c)
	}
	return info
}

// matchesFilter checks if a string matches the include/exclude patterns.
// Patterns are comma-separated and support wildcard matching.
func matchesFilter(value, includePatterns, excludePatterns string) bool {
	for _, pattern := range splitAndTrim(excludePatterns) {
		if matchesPattern(value, pattern) {
			return false
		}
	}

	include := splitAndTrim(includePatterns)
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if matchesPattern(value, pattern) {
			return true
		}
	}
	return false
}

// matchesPattern checks if a string matches a pattern with wildcard support.
func matchesPattern(str, pattern string) bool {
	matched, err := filepath.Match(pattern, str)
	if err != nil {
		// If pattern is invalid, fall back to exact match
		return str == pattern
	}
	return matched
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
