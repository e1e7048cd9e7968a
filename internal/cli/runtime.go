package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/opslens/internal/history"
	"github.com/ppiankov/opslens/internal/kube"
	"github.com/ppiankov/opslens/internal/llm"
	"github.com/ppiankov/opslens/internal/prompt"
	"github.com/ppiankov/opslens/internal/report"
	"github.com/ppiankov/opslens/internal/telemetry"
	"github.com/ppiankov/opslens/internal/util"
	"github.com/spf13/viper"
)

// Generation timeouts per tool.
const (
	dockerTimeout    = 60 * time.Second
	podTimeout       = 180 * time.Second
	costTimeout      = 120 * time.Second
	actionsTimeout   = 120 * time.Second
	terraformTimeout = 300 * time.Second
)

// session holds everything one subcommand run needs to talk to the model
// and publish its reports.
type session struct {
	tool     string
	client   llm.Client
	gen      llm.Generator
	timeout  time.Duration
	hint     string
	redactor *util.Redactor
	metrics  *telemetry.Recorder
	forward  *kube.Forward
	stdout   io.Writer
	// printed is set when the command already wrote its human output.
	printed bool
}

// newSession resolves the model endpoint, checks that it answers and wraps
// the client with the response cache and run metrics.
func newSession(ctx context.Context, tool string, timeout time.Duration) (*session, error) {
	api, err := llm.ParseAPI(viper.GetString("api"))
	if err != nil {
		return nil, util.Invalid("%v", err)
	}

	if err := validateFormat(); err != nil {
		return nil, err
	}

	s := newOfflineSession(tool)
	s.timeout = timeout
	if secs := viper.GetInt("timeout_seconds"); secs > 0 {
		s.timeout = time.Duration(secs) * time.Second
	}

	endpoint := viper.GetString("endpoint")
	if svc := viper.GetString("llm_service"); svc != "" {
		fwd, err := forwardModelService(ctx, svc)
		if err != nil {
			return nil, err
		}
		s.forward = fwd
		endpoint = fwd.URL()
	}

	s.client = llm.Client{
		Endpoint: endpoint,
		Model:    viper.GetString("model"),
		API:      api,
		APIKey:   viper.GetString("api_key"),
		Timeout:  s.timeout,
	}

	if err := s.preflight(ctx); err != nil {
		s.close()
		return nil, err
	}

	cache, err := llm.NewCache(s.client, llm.DefaultCacheSize)
	if err != nil {
		s.close()
		return nil, err
	}
	s.gen = s.metrics.Instrument(cache, tool)
	return s, nil
}

// newOfflineSession is a session for commands that never call the model.
func newOfflineSession(tool string) *session {
	return &session{
		tool:     tool,
		hint:     strings.TrimSpace(viper.GetString("hint")),
		redactor: util.NewRedactor(!viper.GetBool("no_redact")),
		metrics:  telemetry.NewRecorder(),
		stdout:   os.Stdout,
	}
}

func validateFormat() error {
	switch viper.GetString("format") {
	case "human", "json", "markdown":
		return nil
	}
	return util.Invalid("--format must be 'human', 'json' or 'markdown'")
}

func forwardModelService(ctx context.Context, svc string) (*kube.Forward, error) {
	ref, err := kube.ParseServiceRef(svc)
	if err != nil {
		return nil, util.Invalid("--llm-service: %v", err)
	}
	cfg, err := util.BuildRestConfig(GetKubeconfig())
	if err != nil {
		return nil, fmt.Errorf("failed to build Kubernetes config: %w", err)
	}
	cs, err := util.BuildKubeClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build Kubernetes client: %w", err)
	}
	debugf("Port-forwarding to %s...", ref)
	fwd, err := kube.ForwardService(ctx, cs, cfg, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", ref, err)
	}
	return fwd, nil
}

// preflight fails when the endpoint is down and warns when an Ollama
// server does not have the model pulled.
func (s *session) preflight(ctx context.Context) error {
	c := s.clientWithDefaults()
	debugf("Checking AI endpoint %s...", c.Endpoint)
	if err := c.Ping(ctx); err != nil {
		if c.API == llm.APIOllama {
			return util.Invalid("AI endpoint %s is not reachable (start it with: ollama serve): %v", c.Endpoint, err)
		}
		return util.Invalid("AI endpoint %s is not reachable: %v", c.Endpoint, err)
	}

	if c.API != llm.APIOllama {
		return nil
	}
	models, err := c.Models(ctx)
	if err != nil {
		debugf("Could not list models: %v", err)
		return nil
	}
	if !hasModel(models, c.Model) {
		logf("Warning: model %s not found. Pull it with: ollama pull %s", c.Model, c.Model)
	}
	return nil
}

func (s *session) clientWithDefaults() llm.Client {
	c := s.client
	if c.Endpoint == "" {
		c.Endpoint = llm.DefaultEndpoint
	}
	if c.Model == "" {
		c.Model = llm.DefaultModel
	}
	return c
}

// hasModel matches "llama3.2" against tags such as "llama3.2:latest".
func hasModel(models []string, model string) bool {
	for _, m := range models {
		if m == model || strings.TrimSuffix(m, ":latest") == model {
			return true
		}
	}
	return false
}

// ask renders a prompt and runs one generation. Generation failures come
// back as "Error: ..." text; only a missing prompt field is an error.
func (s *session) ask(ctx context.Context, id prompt.ID, fields map[string]string) (string, error) {
	if s.hint != "" {
		if _, ok := fields["hint"]; !ok {
			fields["hint"] = s.hint
		}
	}
	text, err := prompt.Build(id, fields)
	if err != nil {
		return "", err
	}
	debugf("Prompt %s: %d chars", id, len(text))
	return llm.Ask(ctx, s.gen, text, s.timeout), nil
}

// evidence masks credentials and records the excerpt size.
func (s *session) evidence(text string) string {
	text = s.redactor.Redact(text)
	s.metrics.ObserveEvidence(s.tool, len([]rune(text)))
	return text
}

// finish prints reports to stdout and persists them where requested.
func (s *session) finish(reports ...*report.Report) error {
	for range reports {
		s.metrics.CountReport(s.tool)
	}

	if err := validateFormat(); err != nil {
		return err
	}
	format := viper.GetString("format")
	if !(s.printed && format == "human") {
		if err := render(s.stdout, format, reports); err != nil {
			return err
		}
	}

	if outputFile != "" {
		if err := report.Save(outputFile, version, reports...); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		logf("Report saved to %s", outputFile)
	}

	if path := viper.GetString("history_db"); path != "" {
		if err := recordHistory(path, reports); err != nil {
			return err
		}
		debugf("Recorded %d report(s) in %s", len(reports), path)
	}

	if path := viper.GetString("metrics_file"); path != "" {
		if err := s.metrics.WriteTextfile(path); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func (s *session) close() {
	if s.forward != nil {
		s.forward.Stop()
	}
}

func render(w io.Writer, format string, reports []*report.Report) error {
	exporter := report.Exporter{
		Format: report.FormatText,
		Metadata: report.ExportMetadata{
			GeneratedAt:    time.Now().UTC(),
			OpslensVersion: version,
		},
	}
	if len(reports) > 0 {
		exporter.Metadata.Tool = reports[0].Tool
	}
	switch format {
	case "json":
		exporter.Format = report.FormatJSON
	case "markdown":
		exporter.Format = report.FormatMarkdown
	}
	return exporter.Export(w, reports...)
}

func recordHistory(path string, reports []*report.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	db, err := history.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	for _, r := range reports {
		if _, err := db.Record(r); err != nil {
			return err
		}
	}
	return nil
}
