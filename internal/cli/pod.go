package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/ppiankov/opslens/internal/evidence"
	"github.com/ppiankov/opslens/internal/kube"
	"github.com/ppiankov/opslens/internal/prompt"
	"github.com/ppiankov/opslens/internal/report"
	"github.com/ppiankov/opslens/internal/response"
	"github.com/ppiankov/opslens/internal/util"
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// PodCommandConfig holds the pod debugger flags
type PodCommandConfig struct {
	Namespace       string
	Pod             string
	All             bool
	MaxPods         int
	LogLines        int64
	IncludePods     string
	ExcludePods     string
	IncludeKeywords string
}

var podConfig PodCommandConfig

// kubeClients builds the cluster clients; tests replace it.
var kubeClients = func() (kubernetes.Interface, metricsclient.Interface, error) {
	cfg, err := util.BuildRestConfig(GetKubeconfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build Kubernetes config: %w", err)
	}
	cs, err := util.BuildKubeClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build Kubernetes client: %w", err)
	}
	mc, err := util.BuildMetricsClient(cfg)
	if err != nil {
		// usage is optional in the prompt
		debugf("Metrics client unavailable: %v", err)
		mc = nil
	}
	return cs, mc, nil
}

var podCmd = &cobra.Command{
	Use:   "pod",
	Short: "Diagnose unhealthy pods from their logs and events",
	Long: `Find pods that are not Running, not ready or restarting, and ask the model
for a root cause and a fix based on their logs, events and resource usage.

A pod is healthy when it is Running, all containers are ready and none has
restarted.

Examples:
  # Diagnose every unhealthy pod in the current namespace
  opslens pod

  # One pod, with a hint
  opslens pod -n payments --pod api-7d9f --hint "memory leak"

  # Only pods matching a pattern, saved as Markdown
  opslens pod -n prod --include-pods "payment-*" -o pods.md`,
	RunE: runPod,
}

func init() {
	rootCmd.AddCommand(podCmd)

	podCmd.Flags().StringVarP(&podConfig.Namespace, "namespace", "n", "", "namespace (default: current context namespace)")
	podCmd.Flags().StringVar(&podConfig.Pod, "pod", "", "diagnose this pod only")
	podCmd.Flags().BoolVar(&podConfig.All, "all", false, "diagnose all unhealthy pods without listing healthy ones")
	podCmd.Flags().IntVar(&podConfig.MaxPods, "max-pods", 0, "maximum pods to diagnose (0 = no limit)")
	podCmd.Flags().Int64Var(&podConfig.LogLines, "log-lines", kube.DefaultTailLines, "log lines to fetch per pod")
	podCmd.Flags().StringVar(&podConfig.IncludePods, "include-pods", "", "comma-separated pod name patterns (supports wildcards)")
	podCmd.Flags().StringVar(&podConfig.ExcludePods, "exclude-pods", "", "comma-separated pod name patterns to skip")
	podCmd.Flags().StringVar(&podConfig.IncludeKeywords, "include-keywords", "", "extra comma-separated log keywords that mark a line as interesting")
}

func runPod(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if podConfig.Pod != "" && podConfig.All {
		return util.Invalid("--pod and --all are mutually exclusive")
	}
	if podConfig.LogLines <= 0 {
		return util.Invalid("--log-lines must be positive")
	}

	namespace := podConfig.Namespace
	if namespace == "" {
		_, namespace = util.CurrentContext(GetKubeconfig())
	}
	if namespace == "" {
		namespace = "default"
	}

	debugf("Building Kubernetes client...")
	cs, mc, err := kubeClients()
	if err != nil {
		return err
	}

	targets, all, err := selectPods(ctx, cs, namespace)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		logf("All %d pods in namespace %s are healthy", len(all), namespace)
		if !podConfig.All {
			printPodStatus(os.Stdout, all)
		}
		return nil
	}

	if podConfig.MaxPods > 0 && len(targets) > podConfig.MaxPods {
		logf("Limiting analysis to %d of %d pods", podConfig.MaxPods, len(targets))
		targets = targets[:podConfig.MaxPods]
	}

	s, err := newSession(ctx, "pod", podTimeout)
	if err != nil {
		return err
	}
	defer s.close()

	if podConfig.Pod == "" {
		logf("Found %d unhealthy pod(s) in namespace %s", len(targets), namespace)
	}
	reports := make([]*report.Report, 0, len(targets))
	for i, p := range targets {
		logf("Analyzing %s (%d/%d)...", p.Name, i+1, len(targets))
		r, err := diagnosePod(ctx, s, cs, mc, p)
		if err != nil {
			return err
		}
		reports = append(reports, r)
	}
	return s.finish(reports...)
}

// selectPods returns the pods to diagnose and every pod seen.
func selectPods(ctx context.Context, cs kubernetes.Interface, namespace string) ([]kube.PodInfo, []kube.PodInfo, error) {
	if podConfig.Pod != "" {
		p, err := kube.GetPod(ctx, cs, namespace, podConfig.Pod)
		if err != nil {
			return nil, nil, util.Invalid("pod %s not found in namespace %s: %v", podConfig.Pod, namespace, err)
		}
		return []kube.PodInfo{p}, []kube.PodInfo{p}, nil
	}

	pods, err := kube.ListPods(ctx, cs, namespace, kube.Filters{
		IncludePods: podConfig.IncludePods,
		ExcludePods: podConfig.ExcludePods,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list pods: %w", err)
	}
	if len(pods) == 0 {
		return nil, nil, util.Invalid("no pods found in namespace %s", namespace)
	}
	return kube.Unhealthy(pods), pods, nil
}

// diagnosePod gathers evidence for one pod and asks for a diagnosis.
func diagnosePod(ctx context.Context, s *session, cs kubernetes.Interface, mc metricsclient.Interface, p kube.PodInfo) (*report.Report, error) {
	extra := evidence.ParseKeywords(podConfig.IncludeKeywords)
	logs := s.evidence(evidence.PodLogs.WithKeywords(extra).Extract(
		kube.PodLogs(ctx, cs, p.Namespace, p.Name, podConfig.LogLines)))
	events := s.evidence(evidence.PodEvents.Extract(kube.PodEvents(ctx, cs, p.Namespace, p.Name)))

	fields := map[string]string{
		"name":      p.Name,
		"namespace": p.Namespace,
		"status":    p.Status(),
		"ready":     strconv.FormatBool(p.Ready),
		"restarts":  strconv.Itoa(int(p.Restarts)),
		"logs":      logs,
		"events":    events,
	}

	r := report.New("pod", p.Namespace+"/"+p.Name)
	r.Findings = p
	r.AddFact("Namespace", p.Namespace).
		AddFact("Status", p.Status()).
		AddFact("Ready", strconv.FormatBool(p.Ready)).
		AddFact("Restarts", strconv.Itoa(int(p.Restarts))).
		AddFact("Node", p.NodeName)

	if mc != nil {
		if u := kube.PodUsage(ctx, cs, mc, p.Namespace, p.Name); u != nil {
			fields["usage"] = u.String()
			r.AddFact("Usage", u.String())
		}
	}

	diagnosis, err := s.ask(ctx, prompt.PodDiagnosis, fields)
	if err != nil {
		return nil, err
	}
	r.SetAnalysis(diagnosis, response.Heading, prompt.Headings(prompt.PodDiagnosis)...)
	r.AddNextStep(kube.SuggestNextStep(p, diagnosis))
	return r, nil
}

func printPodStatus(w io.Writer, pods []kube.PodInfo) {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Pod", "Status", "Ready", "Restarts"})
	for _, p := range pods {
		table.Append([]string{p.Name, p.Status(), strconv.FormatBool(p.Ready), strconv.Itoa(int(p.Restarts))})
	}
	table.Render()
}
