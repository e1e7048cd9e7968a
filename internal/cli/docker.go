package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/opslens/internal/output"
	"github.com/ppiankov/opslens/internal/prompt"
	"github.com/ppiankov/opslens/internal/report"
	"github.com/ppiankov/opslens/internal/response"
	"github.com/ppiankov/opslens/internal/trivy"
	"github.com/ppiankov/opslens/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runner executes external CLIs; tests replace it.
var runner util.Runner = util.ExecRunner{}

var dockerConfig struct {
	Limit      int
	FailOn     string
	Severities string
	SARIF      string
}

var dockerCmd = &cobra.Command{
	Use:   "docker",
	Short: "Scan container images with trivy and explain the findings",
}

var dockerScanCmd = &cobra.Command{
	Use:   "scan IMAGE",
	Short: "Explain the HIGH and CRITICAL vulnerabilities of an image",
	Long: `Scan an image with trivy, summarize its security posture and explain the
most important vulnerabilities in plain language.

Examples:
  opslens docker scan nginx:latest
  opslens docker scan python:3.9 --limit 3 -o scan.json
  opslens docker scan myapp:1.2 --fail-on CRITICAL --sarif trivy.sarif`,
	Args: cobra.ExactArgs(1),
	RunE: runDockerScan,
}

var dockerCompareCmd = &cobra.Command{
	Use:   "compare IMAGE IMAGE...",
	Short: "Rank images by vulnerability count",
	Long: `Scan several images and rank them from the fewest to the most findings.

Example:
  opslens docker compare python:3.9 python:3.11 python:3.12-slim`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDockerCompare,
}

func init() {
	rootCmd.AddCommand(dockerCmd)
	dockerCmd.AddCommand(dockerScanCmd, dockerCompareCmd)

	dockerCmd.PersistentFlags().StringVar(&dockerConfig.Severities, "severity", trivy.DefaultSeverities, "comma-separated trivy severities to report")
	dockerScanCmd.Flags().IntVar(&dockerConfig.Limit, "limit", 5, "number of vulnerabilities to explain")
	dockerScanCmd.Flags().StringVar(&dockerConfig.FailOn, "fail-on", "", "exit 1 when findings at or above this severity exist (CRITICAL, HIGH, ...)")
	dockerScanCmd.Flags().StringVar(&dockerConfig.SARIF, "sarif", "", "also write the findings as SARIF 2.1.0 to this file")
}

func newScanner() (*trivy.Scanner, error) {
	sevs := strings.Split(strings.ToUpper(dockerConfig.Severities), ",")
	for i, s := range sevs {
		sevs[i] = strings.TrimSpace(s)
		if !trivy.ValidSeverity(sevs[i]) {
			return nil, util.Invalid("--severity: unknown severity %q", s)
		}
	}
	scanner := trivy.NewScanner(runner)
	scanner.Severities = strings.Join(sevs, ",")
	return scanner, scanner.Preflight()
}

func runDockerScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	image := args[0]

	failOn := strings.ToUpper(strings.TrimSpace(dockerConfig.FailOn))
	if failOn != "" && !trivy.ValidSeverity(failOn) {
		return util.Invalid("--fail-on: unknown severity %q", dockerConfig.FailOn)
	}
	if dockerConfig.Limit < 0 {
		return util.Invalid("--limit must be >= 0")
	}

	scanner, err := newScanner()
	if err != nil {
		return err
	}

	s, err := newSession(ctx, "docker", dockerTimeout)
	if err != nil {
		return err
	}
	defer s.close()

	if !scanner.ImageLocal(ctx, image) {
		logf("Image %s not found locally, trivy will pull it", image)
	}
	logf("Scanning %s (this may take a minute)...", image)
	vulns, err := scanner.Scan(ctx, image)
	if err != nil {
		return err
	}

	r, err := buildScanReport(ctx, s, image, vulns, dockerConfig.Limit)
	if err != nil {
		return err
	}
	if err := s.finish(r); err != nil {
		return err
	}
	if dockerConfig.SARIF != "" {
		if err := output.WriteSARIF(dockerConfig.SARIF, image, vulns, explanations(r), version); err != nil {
			return err
		}
		logf("SARIF written to %s", dockerConfig.SARIF)
	}

	if failOn != "" {
		if n := trivy.AtLeast(vulns, failOn); n > 0 {
			return &util.PolicyError{Reason: fmt.Sprintf("%d vulnerabilities at or above %s in %s", n, failOn, image)}
		}
	}
	return nil
}

// buildScanReport summarizes the image and explains the first limit
// findings, one generation each.
func buildScanReport(ctx context.Context, s *session, image string, vulns []trivy.Vulnerability, limit int) (*report.Report, error) {
	r := report.New("docker", image)
	counts := trivy.Count(vulns)
	r.Findings = vulns
	r.AddFact("Image", image).
		AddFact("Total", strconv.Itoa(counts.Total)).
		AddFact("Critical", strconv.Itoa(counts.Critical)).
		AddFact("High", strconv.Itoa(counts.High))

	if counts.Total == 0 {
		logf("No vulnerabilities found at severity %s", dockerSeverities())
		r.SetAnalysis("STATUS: No vulnerabilities found at the scanned severities.", response.LineKey)
		return r, nil
	}

	logf("Found %d vulnerabilities (%d critical, %d high)", counts.Total, counts.Critical, counts.High)

	summary, err := s.ask(ctx, prompt.ImageSummary, map[string]string{
		"image":    image,
		"total":    strconv.Itoa(counts.Total),
		"critical": strconv.Itoa(counts.Critical),
		"high":     strconv.Itoa(counts.High),
		"packages": strings.Join(trivy.TopPackages(vulns, 10), ", "),
	})
	if err != nil {
		return nil, err
	}
	r.SetAnalysis(summary, response.LineKey)

	if limit > len(vulns) {
		limit = len(vulns)
	}
	for i, v := range vulns[:limit] {
		logf("Explaining %s (%d/%d)...", v.ID, i+1, limit)
		text, err := s.ask(ctx, prompt.VulnerabilityExplanation, v.Fields())
		if err != nil {
			return nil, err
		}
		text = response.DeduplicateTrailingRepeat(text)
		r.AddDetail(fmt.Sprintf("%s (%s)", v.ID, v.Severity), text,
			report.Fact{Label: "Package", Value: v.Package + " " + v.Version},
			report.Fact{Label: "Fixed in", Value: v.FixedVersion},
			report.Fact{Label: "Title", Value: v.Title},
		)
	}
	if n := len(vulns) - limit; n > 0 {
		r.AddNextStep(fmt.Sprintf("trivy image --severity %s %s  # %d more findings", dockerSeverities(), image, n))
	}
	return r, nil
}

// explanations maps vulnerability IDs to the explanation details of r.
func explanations(r *report.Report) map[string]string {
	out := make(map[string]string, len(r.Details))
	for _, d := range r.Details {
		if id, _, ok := strings.Cut(d.Title, " ("); ok && d.Text != "" {
			out[id] = d.Text
		}
	}
	return out
}

func dockerSeverities() string {
	if dockerConfig.Severities == "" {
		return trivy.DefaultSeverities
	}
	return strings.ToUpper(dockerConfig.Severities)
}

func runDockerCompare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	scanner, err := newScanner()
	if err != nil {
		return err
	}

	results := make([]trivy.Comparison, 0, len(args))
	for i, image := range args {
		logf("Scanning %s (%d/%d)...", image, i+1, len(args))
		c := trivy.Comparison{Image: image}
		vulns, err := scanner.Scan(ctx, image)
		if err != nil {
			logf("Warning: %v", err)
			c.Err = err.Error()
		} else {
			c.Counts = trivy.Count(vulns)
		}
		results = append(results, c)
	}

	ranked := trivy.Rank(results)
	r := compareReport(results, ranked)

	s := newOfflineSession("docker-compare")
	if viper.GetString("format") == "human" {
		trivy.RenderComparison(s.stdout, ranked)
		s.printed = true
	}
	if err := s.finish(r); err != nil {
		return err
	}
	if len(ranked) == 0 {
		return fmt.Errorf("no image could be scanned")
	}
	return nil
}

func compareReport(results, ranked []trivy.Comparison) *report.Report {
	images := make([]string, 0, len(results))
	for _, c := range results {
		images = append(images, c.Image)
	}
	r := report.New("docker-compare", strings.Join(images, ", "))
	r.Findings = results
	r.AddFact("Images", strconv.Itoa(len(results)))
	r.AddFact("Recommendation", trivy.Recommendation(ranked))
	for i, c := range ranked {
		title := c.Image
		if m := trivy.Marker(i, len(ranked)); m != "" {
			title += " " + m
		}
		r.AddDetail(title, "",
			report.Fact{Label: "Total", Value: strconv.Itoa(c.Total)},
			report.Fact{Label: "Critical", Value: strconv.Itoa(c.Critical)},
			report.Fact{Label: "High", Value: strconv.Itoa(c.High)},
		)
	}
	for _, c := range results {
		if c.Err != "" {
			r.AddDetail(c.Image+" (scan failed)", c.Err)
		}
	}
	return r
}
