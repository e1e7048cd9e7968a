// Package trivy scans container images with the trivy CLI and reshapes its
// JSON report into vulnerability records.
package trivy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/opslens/internal/util"
)

// DefaultSeverities limits scans to the findings worth explaining.
const DefaultSeverities = "HIGH,CRITICAL"

// ScanTimeout bounds a single trivy run, including a registry pull.
const ScanTimeout = 10 * time.Minute

// Severity levels reported by trivy, highest first.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

var severityRank = map[string]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// Vulnerability is one deduplicated finding.
type Vulnerability struct {
	ID           string `json:"id"`
	Package      string `json:"package"`
	Version      string `json:"version"`
	Severity     string `json:"severity"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	FixedVersion string `json:"fixed_version"`
}

// Fields returns the prompt inputs for the vulnerability explanation.
func (v Vulnerability) Fields() map[string]string {
	return map[string]string{
		"id":            v.ID,
		"package":       v.Package,
		"version":       v.Version,
		"severity":      v.Severity,
		"title":         v.Title,
		"fixed_version": v.FixedVersion,
	}
}

// Report is the subset of `trivy image --format json` we read. Every leaf
// is optional; absent values are resolved once in record.normalize.
type Report struct {
	ArtifactName string   `json:"ArtifactName"`
	Results      []Result `json:"Results"`
}

// Result is one scanned target (OS packages, a lockfile, a jar).
type Result struct {
	Target          string   `json:"Target"`
	Vulnerabilities []record `json:"Vulnerabilities"`
}

type record struct {
	VulnerabilityID  *string `json:"VulnerabilityID"`
	PkgName          *string `json:"PkgName"`
	InstalledVersion *string `json:"InstalledVersion"`
	Severity         *string `json:"Severity"`
	Title            *string `json:"Title"`
	Description      *string `json:"Description"`
	FixedVersion     *string `json:"FixedVersion"`
}

const (
	notAvailable = "N/A"
	noFix        = "Not available"
)

func orDefault(s *string, def string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return def
	}
	return *s
}

func (r record) normalize() Vulnerability {
	return Vulnerability{
		ID:           orDefault(r.VulnerabilityID, notAvailable),
		Package:      orDefault(r.PkgName, notAvailable),
		Version:      orDefault(r.InstalledVersion, notAvailable),
		Severity:     strings.ToUpper(orDefault(r.Severity, notAvailable)),
		Title:        orDefault(r.Title, notAvailable),
		Description:  orDefault(r.Description, ""),
		FixedVersion: orDefault(r.FixedVersion, noFix),
	}
}

// ParseReport decodes a trivy JSON report and returns its vulnerabilities
// deduplicated by ID, first occurrence wins, in report order.
func ParseReport(data []byte) ([]Vulnerability, error) {
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("failed to parse trivy report: %w", err)
	}

	seen := make(map[string]bool)
	var out []Vulnerability
	for _, res := range rep.Results {
		for _, rec := range res.Vulnerabilities {
			v := rec.normalize()
			if seen[v.ID] {
				continue
			}
			seen[v.ID] = true
			out = append(out, v)
		}
	}
	return out, nil
}

// Scanner drives the trivy and docker CLIs.
type Scanner struct {
	Runner     util.Runner
	Severities string
	Timeout    time.Duration
}

// NewScanner returns a Scanner backed by runner.
func NewScanner(runner util.Runner) *Scanner {
	return &Scanner{Runner: runner, Severities: DefaultSeverities, Timeout: ScanTimeout}
}

// Preflight fails when trivy is not installed.
func (s *Scanner) Preflight() error {
	if err := s.Runner.LookPath("trivy"); err != nil {
		return util.Invalid("trivy is not installed (brew install trivy, or apt-get install trivy)")
	}
	return nil
}

// ImageLocal reports whether docker already has the image. A missing docker
// CLI counts as not local.
func (s *Scanner) ImageLocal(ctx context.Context, image string) bool {
	if s.Runner.LookPath("docker") != nil {
		return false
	}
	out, err := s.Runner.Run(ctx, "", "docker", "images", "-q", image)
	return err == nil && strings.TrimSpace(string(out)) != ""
}

// Scan runs trivy against image and returns the deduplicated findings.
func (s *Scanner) Scan(ctx context.Context, image string) ([]Vulnerability, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = ScanTimeout
	}
	severities := s.Severities
	if severities == "" {
		severities = DefaultSeverities
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := s.Runner.Run(ctx, "", "trivy", "image",
		"--format", "json",
		"--severity", severities,
		"--quiet",
		image)
	if err != nil {
		return nil, fmt.Errorf("failed to scan image %s: %w", image, err)
	}
	return ParseReport(out)
}
