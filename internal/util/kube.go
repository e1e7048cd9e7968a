// Wrappers to build the K8s clients.

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// BuildRestConfig builds a Kubernetes rest config.
//
// Priority:
// 1. explicit kubeconfig flag
// 2. $KUBECONFIG
// 3. ~/.kube/config
// 4. in-cluster config
func BuildRestConfig(kubeconfig string) (*rest.Config, error) {
	var (
		cfg *rest.Config
		err error
	)

	if kubeconfig != "" {
		kubeconfig = expandTilde(kubeconfig)
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("build config from kubeconfig=%s: %w", kubeconfig, err)
		}
	} else if env := os.Getenv("KUBECONFIG"); env != "" {
		cfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			&clientcmd.ClientConfigLoadingRules{Precedence: filepath.SplitList(env)},
			&clientcmd.ConfigOverrides{},
		).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("build config from $KUBECONFIG=%s: %w", env, err)
		}
	} else if home := defaultKubeconfig(); home != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", home)
		if err != nil {
			return nil, fmt.Errorf("build config from %s: %w", home, err)
		}
	} else {
		cfg, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("in-cluster config: %w", err)
		}
	}

	return cfg, nil
}

// BuildKubeClient builds a Kubernetes clientset from a rest config.
func BuildKubeClient(cfg *rest.Config) (kubernetes.Interface, error) {
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("new clientset: %w", err)
	}
	return clientset, nil
}

// BuildMetricsClient builds a metrics.k8s.io clientset.
func BuildMetricsClient(cfg *rest.Config) (metricsclient.Interface, error) {
	mc, err := metricsclient.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("new metrics clientset: %w", err)
	}
	return mc, nil
}

// CurrentContext returns the cluster and default namespace of the current
// kubeconfig context, or "unknown" and "" when they cannot be read.
func CurrentContext(kubeconfig string) (cluster, namespace string) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = expandTilde(kubeconfig)
	}

	config := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})
	rawConfig, err := config.RawConfig()
	if err != nil || rawConfig.CurrentContext == "" {
		return "unknown", ""
	}

	ctx, ok := rawConfig.Contexts[rawConfig.CurrentContext]
	if !ok {
		return "unknown", ""
	}
	return ctx.Cluster, ctx.Namespace
}

func defaultKubeconfig() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".kube", "config")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
