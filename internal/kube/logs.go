package kube

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// FetchTimeout bounds each log or event call.
const FetchTimeout = 10 * time.Second

// DefaultTailLines is how many log lines are requested per pod.
const DefaultTailLines = 50

// PodLogs returns the last tail lines of the pod's logs, falling back to the
// previous container instance when the current one has none (crash loops).
// Failures yield "".
func PodLogs(ctx context.Context, cs kubernetes.Interface, namespace, name string, tail int64) string {
	if tail <= 0 {
		tail = DefaultTailLines
	}
	return logsWithFallback(func(previous bool) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
		defer cancel()

		raw, err := cs.CoreV1().Pods(namespace).GetLogs(name, &corev1.PodLogOptions{
			TailLines: &tail,
			Previous:  previous,
		}).DoRaw(ctx)
		return string(raw), err
	})
}

func logsWithFallback(fetch func(previous bool) (string, error)) string {
	if out, err := fetch(false); err == nil && strings.TrimSpace(out) != "" {
		return out
	}
	if out, err := fetch(true); err == nil {
		return out
	}
	return ""
}

// PodEvents renders the events of a pod oldest first, one per line, in the
// column order of `kubectl describe`: type, reason, source, message.
// Failures yield "".
func PodEvents(ctx context.Context, cs kubernetes.Interface, namespace, name string) string {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	list, err := cs.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: fmt.Sprintf("involvedObject.kind=Pod,involvedObject.name=%s", name),
	})
	if err != nil {
		return ""
	}

	var events []corev1.Event
	for _, e := range list.Items {
		if e.InvolvedObject.Name == name {
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return eventTime(events[i]).Before(eventTime(events[j]))
	})

	var b strings.Builder
	for _, e := range events {
		b.WriteString(FormatEvent(e))
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// FormatEvent renders one event line.
func FormatEvent(e corev1.Event) string {
	typ := e.Type
	if typ == "" {
		typ = "Normal"
	}
	source := e.Source.Component
	if source == "" {
		source = e.ReportingController
	}
	line := fmt.Sprintf("%-8s %-20s %-10s %s", typ, e.Reason, source, strings.TrimSpace(e.Message))
	if e.Count > 1 {
		line += fmt.Sprintf(" (x%d)", e.Count)
	}
	return line
}

func eventTime(e corev1.Event) time.Time {
	switch {
	case !e.LastTimestamp.IsZero():
		return e.LastTimestamp.Time
	case !e.EventTime.IsZero():
		return e.EventTime.Time
	default:
		return e.FirstTimestamp.Time
	}
}
