package kube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"
)

// ServiceRef names a cluster service port, written namespace/name:port.
type ServiceRef struct {
	Namespace string
	Name      string
	Port      int
}

func (r ServiceRef) String() string {
	return fmt.Sprintf("%s/%s:%d", r.Namespace, r.Name, r.Port)
}

// ParseServiceRef parses "namespace/name:port"; the namespace defaults to
// "default".
func ParseServiceRef(s string) (ServiceRef, error) {
	ref := ServiceRef{Namespace: "default"}
	remainder := strings.TrimSpace(s)
	if ns, name, ok := strings.Cut(remainder, "/"); ok {
		ref.Namespace = ns
		remainder = name
	}
	name, port, ok := strings.Cut(remainder, ":")
	if !ok {
		return ServiceRef{}, fmt.Errorf("service %q: expected namespace/name:port", s)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return ServiceRef{}, fmt.Errorf("service %q: invalid port %q", s, port)
	}
	if name == "" || ref.Namespace == "" {
		return ServiceRef{}, fmt.Errorf("service %q: expected namespace/name:port", s)
	}
	ref.Name = name
	ref.Port = p
	return ref, nil
}

// Forward is a running port-forward to a pod backing a service, used to
// reach a model server that runs inside the cluster.
type Forward struct {
	LocalPort uint16
	stopChan  chan struct{}
}

// URL returns the local base URL of the forward.
func (f *Forward) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", f.LocalPort)
}

// Stop terminates the port-forward.
func (f *Forward) Stop() {
	if f.stopChan != nil {
		close(f.stopChan)
		f.stopChan = nil
	}
}

// ForwardService opens a port-forward from a random local port to ref.
func ForwardService(ctx context.Context, cs kubernetes.Interface, cfg *rest.Config, ref ServiceRef) (*Forward, error) {
	podName, err := backingPod(ctx, cs, ref)
	if err != nil {
		return nil, err
	}

	req := cs.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(ref.Namespace).
		Name(podName).
		SubResource("portforward")

	transport, upgrader, err := spdy.RoundTripperFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create SPDY transport: %w", err)
	}
	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, http.MethodPost, req.URL())

	stopChan := make(chan struct{}, 1)
	readyChan := make(chan struct{}, 1)
	ports := []string{fmt.Sprintf("0:%d", ref.Port)}
	fw, err := portforward.New(dialer, ports, stopChan, readyChan, io.Discard, io.Discard)
	if err != nil {
		return nil, fmt.Errorf("failed to create port-forwarder: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- fw.ForwardPorts()
	}()

	select {
	case <-readyChan:
	case err := <-errChan:
		return nil, fmt.Errorf("port-forward to %s: %w", ref, err)
	case <-time.After(FetchTimeout):
		close(stopChan)
		return nil, fmt.Errorf("timeout waiting for port-forward to %s", ref)
	case <-ctx.Done():
		close(stopChan)
		return nil, ctx.Err()
	}

	forwarded, err := fw.GetPorts()
	if err != nil || len(forwarded) == 0 {
		close(stopChan)
		return nil, fmt.Errorf("port-forward to %s: no local port", ref)
	}
	return &Forward{LocalPort: forwarded[0].Local, stopChan: stopChan}, nil
}

// backingPod finds a running pod selected by the service.
func backingPod(ctx context.Context, cs kubernetes.Interface, ref ServiceRef) (string, error) {
	svc, err := cs.CoreV1().Services(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get service: %w", err)
	}
	if len(svc.Spec.Selector) == 0 {
		return "", fmt.Errorf("service %s has no selector", ref)
	}

	pods, err := cs.CoreV1().Pods(ref.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: metav1.FormatLabelSelector(&metav1.LabelSelector{MatchLabels: svc.Spec.Selector}),
		FieldSelector: "status.phase=Running",
	})
	if err != nil {
		return "", fmt.Errorf("failed to list pods: %w", err)
	}
	for _, p := range pods.Items {
		if p.Status.Phase == corev1.PodRunning {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("no running pods found for service %s", ref)
}
