package kube

import (
	"fmt"
	"strings"
)

// SuggestNextStep picks the kubectl command most likely to help next.
func SuggestNextStep(p PodInfo, diagnosis string) string {
	d := strings.ToLower(diagnosis)
	switch {
	case isImageProblem(p.Status()) || strings.Contains(d, "imagepull") || strings.Contains(d, "image pull"):
		return fmt.Sprintf("kubectl describe pod %s -n %s | grep -A 5 'Events:'", p.Name, p.Namespace)
	case p.Restarts > 0:
		return fmt.Sprintf("kubectl logs %s -n %s --previous", p.Name, p.Namespace)
	case !p.Ready:
		return fmt.Sprintf("kubectl get pod %s -n %s -o yaml", p.Name, p.Namespace)
	default:
		return fmt.Sprintf("kubectl describe pod %s -n %s", p.Name, p.Namespace)
	}
}

func isImageProblem(reason string) bool {
	switch reason {
	case "ImagePullBackOff", "ErrImagePull", "InvalidImageName", "ErrImageNeverPull":
		return true
	}
	return false
}
