package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ghAPI "github.com/cli/go-gh/v2/pkg/api"
	"github.com/ppiankov/opslens/internal/actions"
	"github.com/ppiankov/opslens/internal/cost"
	"github.com/ppiankov/opslens/internal/history"
	"github.com/ppiankov/opslens/internal/kube"
	"github.com/ppiankov/opslens/internal/prompt"
	"github.com/ppiankov/opslens/internal/report"
	"github.com/ppiankov/opslens/internal/response"
	"github.com/ppiankov/opslens/internal/telemetry"
	"github.com/ppiankov/opslens/internal/trivy"
	"github.com/ppiankov/opslens/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

// fakeGen answers by the first matching prompt substring.
type fakeGen struct {
	answers map[string]string
	def     string
	err     error
	prompts []string
}

func (f *fakeGen) Complete(ctx context.Context, p string) (string, error) {
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return "", f.err
	}
	for k, v := range f.answers {
		if strings.Contains(p, k) {
			return v, nil
		}
	}
	return f.def, nil
}

func testSession(gen *fakeGen) (*session, *bytes.Buffer) {
	var out bytes.Buffer
	return &session{
		tool:     "test",
		gen:      gen,
		timeout:  time.Second,
		redactor: util.NewRedactor(true),
		metrics:  telemetry.NewRecorder(),
		stdout:   &out,
	}, &out
}

// setViper overrides a config key for one test.
func setViper(t *testing.T, key string, value any) {
	t.Helper()
	old := viper.Get(key)
	viper.Set(key, value)
	t.Cleanup(func() { viper.Set(key, old) })
}

func ollamaServer(t *testing.T, models []string, answer string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			list := make([]map[string]string, 0, len(models))
			for _, m := range models {
				list = append(list, map[string]string{"name": m})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"models": list})
		case "/api/generate":
			_ = json.NewEncoder(w).Encode(map[string]any{"response": answer, "done": true})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHasModel(t *testing.T) {
	assert.True(t, hasModel([]string{"mistral:7b", "llama3.2:latest"}, "llama3.2"))
	assert.True(t, hasModel([]string{"mistral:7b"}, "mistral:7b"))
	assert.False(t, hasModel([]string{"llama3.1:latest"}, "llama3.2"))
	assert.False(t, hasModel(nil, "llama3.2"))
}

func TestSessionAsk_HintAndMissingField(t *testing.T) {
	gen := &fakeGen{def: "**ROOT CAUSE:** bad tag"}
	s, _ := testSession(gen)
	s.hint = "DNS"

	out, err := s.ask(context.Background(), prompt.PodDiagnosis, map[string]string{
		"name": "api", "status": "ImagePullBackOff",
	})
	require.NoError(t, err)
	assert.Equal(t, "**ROOT CAUSE:** bad tag", out)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "related to: DNS")

	_, err = s.ask(context.Background(), prompt.WorkflowFailure, map[string]string{"workflow": "ci", "job": "test"})
	var mfe *prompt.MissingFieldError
	require.ErrorAs(t, err, &mfe)
	assert.Contains(t, err.Error(), "evidence")
}

func TestSessionAsk_DegradesGenerationErrors(t *testing.T) {
	s, _ := testSession(&fakeGen{err: errors.New("connection refused")})
	out, err := s.ask(context.Background(), prompt.SavingsTips, map[string]string{"service": "Amazon EC2", "cost": "12.00"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Error communicating with AI: "))
}

func TestSessionEvidence_Redacts(t *testing.T) {
	s, _ := testSession(&fakeGen{})
	out := s.evidence("login failed password=hunter2hunter2")
	assert.NotContains(t, out, "hunter2hunter2")
	assert.Contains(t, out, "login failed")
}

func TestRender_Formats(t *testing.T) {
	r := report.New("pod", "default/api")
	r.AddFact("Status", "CrashLoopBackOff")
	r.SetAnalysis("**ROOT CAUSE:**\nOOMKilled\n**HOW TO FIX:**\nraise the limit", response.Heading)

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", []*report.Report{r}))
	var doc struct {
		Metadata report.ExportMetadata `json:"metadata"`
		Reports  []struct {
			Sections map[string]string `json:"sections"`
		} `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "pod", doc.Metadata.Tool)
	require.Len(t, doc.Reports, 1)
	assert.Equal(t, "OOMKilled", doc.Reports[0].Sections["root_cause"])

	buf.Reset()
	require.NoError(t, render(&buf, "markdown", []*report.Report{r}))
	assert.Contains(t, buf.String(), "## root_cause")

	buf.Reset()
	require.NoError(t, render(&buf, "human", []*report.Report{r}))
	assert.Contains(t, buf.String(), "root_cause")
	assert.Contains(t, buf.String(), "raise the limit")
}

func TestValidateFormat(t *testing.T) {
	setViper(t, "format", "yaml")
	err := validateFormat()
	require.Error(t, err)
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))
}

func TestFinish_PersistsEverywhere(t *testing.T) {
	dir := t.TempDir()
	setViper(t, "format", "human")
	setViper(t, "history_db", filepath.Join(dir, "state", "history.db"))
	setViper(t, "metrics_file", filepath.Join(dir, "opslens.prom"))
	outputFile = filepath.Join(dir, "reports", "run.json")
	t.Cleanup(func() { outputFile = "" })

	s, out := testSession(&fakeGen{})
	r := report.New("test", "subject")
	r.SetAnalysis("STATUS: fine", response.LineKey)
	require.NoError(t, s.finish(r))

	assert.Contains(t, out.String(), "subject")

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status": "fine"`)

	db, err := history.Open(filepath.Join(dir, "state", "history.db"))
	require.NoError(t, err)
	defer db.Close()
	entries, err := db.List("test", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "subject", entries[0].Subject)

	metrics, err := os.ReadFile(filepath.Join(dir, "opslens.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `opslens_reports_total{tool="test"} 1`)
}

func TestFinish_SkipsRenderWhenPrinted(t *testing.T) {
	setViper(t, "format", "human")
	setViper(t, "history_db", "")
	setViper(t, "metrics_file", "")

	s, out := testSession(&fakeGen{})
	s.printed = true
	require.NoError(t, s.finish(report.New("docker-compare", "a, b")))
	assert.Empty(t, out.String())
}

func TestNewSession_Unreachable(t *testing.T) {
	setViper(t, "endpoint", "http://127.0.0.1:1")
	setViper(t, "api", "ollama")
	setViper(t, "format", "human")
	setViper(t, "llm_service", "")

	_, err := newSession(context.Background(), "pod", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama serve")
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))
}

func TestNewSession_TimeoutOverride(t *testing.T) {
	server := ollamaServer(t, []string{"llama3.2:latest"}, "ok")
	setViper(t, "endpoint", server.URL)
	setViper(t, "api", "ollama")
	setViper(t, "format", "human")
	setViper(t, "llm_service", "")
	setViper(t, "timeout_seconds", 7)

	s, err := newSession(context.Background(), "pod", podTimeout)
	require.NoError(t, err)
	defer s.close()
	assert.Equal(t, 7*time.Second, s.timeout)

	out, err := s.ask(context.Background(), prompt.SavingsTips, map[string]string{"service": "S3", "cost": "3.00"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestBuildScanReport(t *testing.T) {
	gen := &fakeGen{
		answers: map[string]string{
			"security consultant": "SECURITY_POSTURE: concerning\nRECOMMENDATION: rebuild on alpine",
		},
		def: "Upgrade openssl to 3.0.8.",
	}
	s, _ := testSession(gen)
	vulns := []trivy.Vulnerability{
		{ID: "CVE-1", Package: "openssl", Version: "3.0.1", Severity: "CRITICAL", Title: "t1", FixedVersion: "3.0.8"},
		{ID: "CVE-2", Package: "curl", Version: "7.1", Severity: "HIGH", Title: "t2", FixedVersion: "Not available"},
		{ID: "CVE-3", Package: "zlib", Version: "1.2", Severity: "HIGH", Title: "t3", FixedVersion: "1.3"},
	}

	r, err := buildScanReport(context.Background(), s, "nginx:1.0", vulns, 2)
	require.NoError(t, err)
	assert.Equal(t, "1", r.Fact("Critical"))
	assert.Equal(t, "2", r.Fact("High"))
	assert.Equal(t, "concerning", r.Sections.Value("security_posture"))
	require.Len(t, r.Details, 2)
	assert.Equal(t, "CVE-1 (CRITICAL)", r.Details[0].Title)
	assert.Equal(t, "Upgrade openssl to 3.0.8.", r.Details[0].Text)
	assert.Len(t, gen.prompts, 3)
	require.Len(t, r.NextSteps, 1)
	assert.Contains(t, r.NextSteps[0], "1 more findings")

	ex := explanations(r)
	assert.Equal(t, "Upgrade openssl to 3.0.8.", ex["CVE-1"])
	assert.NotContains(t, ex, "CVE-3")
}

func TestBuildScanReport_NoVulnerabilities(t *testing.T) {
	gen := &fakeGen{}
	s, _ := testSession(gen)
	r, err := buildScanReport(context.Background(), s, "distroless", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, gen.prompts)
	assert.Equal(t, "0", r.Fact("Total"))
	assert.True(t, r.Sections.Has("status"))
}

func TestCompareReport(t *testing.T) {
	results := []trivy.Comparison{
		{Image: "python:3.9", Counts: trivy.Counts{Total: 40, High: 30, Critical: 10}},
		{Image: "python:3.12-slim", Counts: trivy.Counts{Total: 3, High: 3}},
		{Image: "broken", Err: "scan failed"},
	}
	ranked := trivy.Rank(results)
	r := compareReport(results, ranked)

	assert.Equal(t, "Use python:3.12-slim (lowest vulnerability count: 3)", r.Fact("Recommendation"))
	require.Len(t, r.Details, 3)
	assert.Equal(t, "python:3.12-slim ✅ BEST", r.Details[0].Title)
	assert.Equal(t, "broken (scan failed)", r.Details[2].Title)
}

func TestAnalyzeCosts_TipsForTopServices(t *testing.T) {
	gen := &fakeGen{
		answers: map[string]string{"cost optimization expert": "**BIGGEST COST DRIVERS:**\nEC2"},
		def:     "Use reserved instances.",
	}
	s, _ := testSession(gen)
	old := costConfig
	costConfig.Days, costConfig.Tips = 30, 1
	t.Cleanup(func() { costConfig = old })

	services := []cost.ServiceCost{
		{Service: "Amazon EC2", Cost: 75},
		{Service: "Amazon S3", Cost: 25},
	}
	r := report.New("cost", "acct")
	require.NoError(t, analyzeCosts(context.Background(), s, r, services, cost.Resources{EC2Instances: 2}))

	assert.Equal(t, "$100.00", r.Fact("Total"))
	assert.Equal(t, "EC2", r.Sections.Value("biggest_cost_drivers"))
	require.Len(t, r.Details, 3)
	assert.Equal(t, "Use reserved instances.", r.Details[0].Text)
	assert.Equal(t, "75.0%", r.Details[0].Facts[1].Value)
	assert.Empty(t, r.Details[1].Text, "tips only for the first service")
	assert.Equal(t, "Resources", r.Details[2].Title)
	assert.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[0], "- Amazon EC2: $75.00")
}

func TestDiagnosePod(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "api", Namespace: "prod"},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{{
				Name:         "api",
				RestartCount: 4,
				State: corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: "CrashLoopBackOff"}},
			}},
		},
	}
	cs := fake.NewSimpleClientset(pod)
	gen := &fakeGen{def: "**ROOT CAUSE:**\nMissing DATABASE_URL\n**HOW TO FIX:**\nset it"}
	s, _ := testSession(gen)

	old := podConfig
	podConfig.LogLines = kube.DefaultTailLines
	t.Cleanup(func() { podConfig = old })

	r, err := diagnosePod(context.Background(), s, cs, nil, kube.NewPodInfo(pod))
	require.NoError(t, err)
	assert.Equal(t, "prod/api", r.Subject)
	assert.Equal(t, "CrashLoopBackOff", r.Fact("Status"))
	assert.Equal(t, "Missing DATABASE_URL", r.Sections.Value("root_cause"))
	assert.Equal(t, []string{"kubectl logs api -n prod --previous"}, r.NextSteps)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "fake logs")
	assert.Contains(t, gen.prompts[0], "No events available")
}

func TestSelectPods(t *testing.T) {
	healthy := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
		Status: corev1.PodStatus{
			Phase:             corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{{Name: "web", Ready: true}},
		},
	}
	pending := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "job", Namespace: "default"},
		Status:     corev1.PodStatus{Phase: corev1.PodPending},
	}
	cs := fake.NewSimpleClientset(healthy, pending)
	old := podConfig
	t.Cleanup(func() { podConfig = old })

	podConfig = PodCommandConfig{}
	targets, all, err := selectPods(context.Background(), cs, "default")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	require.Len(t, targets, 1)
	assert.Equal(t, "job", targets[0].Name)

	podConfig = PodCommandConfig{Pod: "web"}
	targets, _, err = selectPods(context.Background(), cs, "default")
	require.NoError(t, err)
	assert.Equal(t, "web", targets[0].Name)

	podConfig = PodCommandConfig{Pod: "missing"}
	_, _, err = selectPods(context.Background(), cs, "default")
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))

	podConfig = PodCommandConfig{}
	_, _, err = selectPods(context.Background(), cs, "empty")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pods found")
}

func TestRunTerraform_EndToEnd(t *testing.T) {
	answer := "### main.tf ###\nresource \"aws_s3_bucket\" \"logs\" {}\n### variables.tf ###\nvariable \"name\" {}\n"
	server := ollamaServer(t, []string{"llama3.2:latest"}, answer)
	dir := t.TempDir()

	setViper(t, "endpoint", server.URL)
	setViper(t, "api", "ollama")
	setViper(t, "format", "json")
	setViper(t, "llm_service", "")
	setViper(t, "history_db", filepath.Join(dir, "history.db"))
	setViper(t, "metrics_file", "")

	old := terraformConfig
	terraformConfig.Description = "S3 bucket for logs"
	terraformConfig.Provider = "aws"
	terraformConfig.OutputDir = filepath.Join(dir, "generated")
	terraformConfig.Validate = false
	terraformConfig.Diff = false
	t.Cleanup(func() { terraformConfig = old })

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	require.NoError(t, runTerraform(cmd, nil))

	data, err := os.ReadFile(filepath.Join(dir, "generated", "main.tf"))
	require.NoError(t, err)
	assert.Equal(t, "resource \"aws_s3_bucket\" \"logs\" {}\n", string(data))
	assert.FileExists(t, filepath.Join(dir, "generated", "variables.tf"))

	db, err := history.Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer db.Close()
	r, err := db.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "terraform", r.Tool)
	assert.Equal(t, "2", r.Fact("Files"))
	assert.Equal(t, []string{"cd " + filepath.Join(dir, "generated"), "terraform init", "terraform plan", "terraform apply"}, r.NextSteps)
}

func TestRunTerraform_InvalidInput(t *testing.T) {
	old := terraformConfig
	t.Cleanup(func() { terraformConfig = old })

	terraformConfig.Description = ""
	err := runTerraform(&cobra.Command{}, nil)
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))

	terraformConfig.Description = "vpc"
	terraformConfig.Provider = "oracle"
	err = runTerraform(&cobra.Command{}, nil)
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))
}

// githubREST serves canned Actions API bodies keyed by request path.
type githubREST struct {
	bodies map[string]string
	logs   map[string]string
}

func (f *githubREST) DoWithContext(ctx context.Context, method, path string, body io.Reader, response interface{}) error {
	b, ok := f.bodies[path]
	if !ok {
		return &ghAPI.HTTPError{StatusCode: http.StatusNotFound, Message: "Not Found"}
	}
	return json.Unmarshal([]byte(b), response)
}

func (f *githubREST) RequestWithContext(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	text, ok := f.logs[path]
	if !ok {
		return nil, &ghAPI.HTTPError{StatusCode: http.StatusGone, Message: "logs expired"}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(text))}, nil
}

const failedJobs = `{"total_count": 2, "jobs": [
	{"id": 1, "name": "lint", "conclusion": "success"},
	{"id": 2, "name": "test", "conclusion": "failure", "html_url": "https://github.com/o/r/actions/runs/42/job/2",
	 "steps": [{"name": "go test", "conclusion": "failure", "number": 1}]}
]}`

func testRun() actions.Run {
	return actions.Run{ID: 42, Name: "CI", RunNumber: 7, Conclusion: "failure", HTMLURL: "https://github.com/o/r/actions/runs/42"}
}

func TestAnalyzeRun_LogFetchFailureDegrades(t *testing.T) {
	gh := actions.NewClientWithREST(&githubREST{bodies: map[string]string{
		"repos/o/r/actions/runs/42/jobs?filter=latest&per_page=100": failedJobs,
	}}, "o", "r")
	gen := &fakeGen{answers: map[string]string{
		"No logs available": "**ROOT CAUSE:**\nlogs expired before analysis\n**HOW TO FIX:**\nrerun with debug logging",
	}}
	s, _ := testSession(gen)

	r, err := analyzeRun(context.Background(), s, gh, testRun())
	require.NoError(t, err)
	assert.Equal(t, "test", r.Fact("Failed job"))
	assert.Equal(t, "go test", r.Fact("Failed step"))
	assert.Equal(t, "logs expired before analysis", r.Sections.Value("root_cause"))

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "No logs available")
	require.Len(t, r.Details, 1)
	assert.Equal(t, "Error excerpt", r.Details[0].Title)
	assert.Equal(t, "No logs available", r.Details[0].Text)
	assert.Contains(t, r.NextSteps, "gh run view 42 --repo o/r --log-failed")
	assert.Contains(t, r.NextSteps, "gh run rerun 42 --repo o/r --failed")
}

func TestAnalyzeRun_UsesLogExcerpt(t *testing.T) {
	gh := actions.NewClientWithREST(&githubREST{
		bodies: map[string]string{"repos/o/r/actions/runs/42/jobs?filter=latest&per_page=100": failedJobs},
		logs:   map[string]string{"repos/o/r/actions/jobs/2/logs": "setup ok\n--- FAIL: TestHandler\nexit status 1\n"},
	}, "o", "r")
	gen := &fakeGen{def: "**ROOT CAUSE:**\nhandler test\n"}
	s, _ := testSession(gen)

	r, err := analyzeRun(context.Background(), s, gh, testRun())
	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "--- FAIL: TestHandler")
	assert.NotContains(t, gen.prompts[0], "No logs available")
	assert.Contains(t, r.Details[0].Text, "--- FAIL: TestHandler")
}

func TestAnalyzeRun_NoFailedJob(t *testing.T) {
	gh := actions.NewClientWithREST(&githubREST{bodies: map[string]string{
		"repos/o/r/actions/runs/42/jobs?filter=latest&per_page=100": `{"jobs": [{"id": 1, "name": "lint", "conclusion": "cancelled"}]}`,
	}}, "o", "r")
	gen := &fakeGen{}
	s, _ := testSession(gen)

	r, err := analyzeRun(context.Background(), s, gh, testRun())
	require.NoError(t, err)
	assert.True(t, r.Sections.Has("status"))
	assert.Empty(t, gen.prompts)
	assert.Empty(t, r.NextSteps)
}

func TestAnalyzeRun_JobListError(t *testing.T) {
	gh := actions.NewClientWithREST(&githubREST{}, "o", "r")
	s, _ := testSession(&fakeGen{})
	_, err := analyzeRun(context.Background(), s, gh, testRun())
	assert.ErrorContains(t, err, "failed to list jobs")
}

func TestPickRun(t *testing.T) {
	old := actionsConfig
	t.Cleanup(func() { actionsConfig = old })
	ctx := context.Background()

	gh := actions.NewClientWithREST(&githubREST{bodies: map[string]string{
		"repos/o/r/actions/runs/42": `{"id": 42, "name": "CI", "run_number": 7}`,
		"repos/o/r/actions/runs?per_page=2&status=failure": `{"workflow_runs": [
			{"id": 43, "name": "CI", "run_number": 8},
			{"id": 42, "name": "CI", "run_number": 7}
		]}`,
	}}, "o", "r")

	t.Run("run id", func(t *testing.T) {
		actionsConfig.RunID = 42
		run, others, found, err := pickRun(ctx, gh)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(42), run.ID)
		assert.Empty(t, others)
	})

	t.Run("unknown run id", func(t *testing.T) {
		actionsConfig.RunID = 99
		_, _, found, err := pickRun(ctx, gh)
		assert.False(t, found)
		assert.ErrorContains(t, err, "workflow run 99 not found in o/r")
		assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))
	})

	t.Run("latest failure", func(t *testing.T) {
		actionsConfig.RunID = 0
		actionsConfig.Limit = 2
		run, others, found, err := pickRun(ctx, gh)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(43), run.ID)
		require.Len(t, others, 1)
		assert.Equal(t, 7, others[0].RunNumber)
	})
}

func TestPickRun_NoFailedRuns(t *testing.T) {
	old := actionsConfig
	t.Cleanup(func() { actionsConfig = old })
	actionsConfig.RunID = 0
	actionsConfig.Limit = 5

	gh := actions.NewClientWithREST(&githubREST{bodies: map[string]string{
		"repos/o/r/actions/runs?per_page=5&status=failure": `{"total_count": 0, "workflow_runs": []}`,
	}}, "o", "r")
	_, _, found, err := pickRun(context.Background(), gh)
	require.NoError(t, err)
	assert.False(t, found)
}
