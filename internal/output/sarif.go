// Package output writes scan findings in formats other tools ingest.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/opslens/internal/trivy"
)

const sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"

// SARIF represents the SARIF 2.1.0 format for static analysis results
// See https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html
type SARIF struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

type Tool struct {
	Driver Driver `json:"driver"`
}

type Driver struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	InformationUri  string `json:"informationUri"`
	SemanticVersion string `json:"semanticVersion"`
	Rules           []Rule `json:"rules"`
}

type Rule struct {
	ID                   string                 `json:"id"`
	Name                 string                 `json:"name"`
	ShortDescription     MessageString          `json:"shortDescription"`
	FullDescription      MessageString          `json:"fullDescription"`
	Help                 MessageString          `json:"help"`
	DefaultConfiguration RuleConfiguration      `json:"defaultConfiguration"`
	Properties           map[string]interface{} `json:"properties,omitempty"`
}

type RuleConfiguration struct {
	Level string `json:"level"`
}

type Result struct {
	RuleID     string                 `json:"ruleId"`
	Level      string                 `json:"level"`
	Message    MessageString          `json:"message"`
	Locations  []Location             `json:"locations,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
}

type ArtifactLocation struct {
	URI string `json:"uri"`
}

type MessageString struct {
	Text string `json:"text"`
}

// GenerateSARIF converts the findings of one image to SARIF, e.g. for
// GitHub code scanning. explanations maps vulnerability IDs to the plain
// language explanation shown as rule help; missing ones fall back to the
// advisory title.
func GenerateSARIF(image string, vulns []trivy.Vulnerability, explanations map[string]string, version string) ([]byte, error) {
	sarif := SARIF{
		Schema:  sarifSchema,
		Version: "2.1.0",
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:            "opslens",
						Version:         version,
						InformationUri:  "https://github.com/ppiankov/opslens",
						SemanticVersion: version,
						Rules:           vulnerabilityRules(vulns, explanations),
					},
				},
				Results: vulnerabilityResults(image, vulns),
			},
		},
	}

	return json.MarshalIndent(sarif, "", "  ")
}

// WriteSARIF writes GenerateSARIF's output to path, creating parent
// directories.
func WriteSARIF(path, image string, vulns []trivy.Vulnerability, explanations map[string]string, version string) error {
	data, err := GenerateSARIF(image, vulns, explanations, version)
	if err != nil {
		return fmt.Errorf("failed to encode SARIF: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// vulnerabilityRules declares one rule per vulnerability ID. Findings are
// already unique by ID.
func vulnerabilityRules(vulns []trivy.Vulnerability, explanations map[string]string) []Rule {
	rules := make([]Rule, 0, len(vulns))
	for _, v := range vulns {
		help := explanations[v.ID]
		if help == "" {
			help = v.Title
		}
		full := v.Description
		if full == "" {
			full = v.Title
		}
		rules = append(rules, Rule{
			ID:                   v.ID,
			Name:                 v.Package,
			ShortDescription:     MessageString{Text: v.Title},
			FullDescription:      MessageString{Text: full},
			Help:                 MessageString{Text: help},
			DefaultConfiguration: RuleConfiguration{Level: levelForSeverity(v.Severity)},
			Properties: map[string]interface{}{
				"tags":     []string{"vulnerability", "security", v.Severity},
				"severity": v.Severity,
			},
		})
	}
	return rules
}

func vulnerabilityResults(image string, vulns []trivy.Vulnerability) []Result {
	results := make([]Result, 0, len(vulns))
	for _, v := range vulns {
		message := fmt.Sprintf("Package: %s\nInstalled Version: %s\nVulnerability %s\nSeverity: %s\nFixed Version: %s",
			v.Package, v.Version, v.ID, v.Severity, v.FixedVersion)
		results = append(results, Result{
			RuleID:  v.ID,
			Level:   levelForSeverity(v.Severity),
			Message: MessageString{Text: message},
			Locations: []Location{
				{
					PhysicalLocation: PhysicalLocation{
						ArtifactLocation: ArtifactLocation{URI: image},
					},
				},
			},
			Properties: map[string]interface{}{
				"package":       v.Package,
				"version":       v.Version,
				"fixed_version": v.FixedVersion,
			},
		})
	}
	return results
}

func levelForSeverity(severity string) string {
	switch severity {
	case trivy.SeverityCritical, trivy.SeverityHigh:
		return "error"
	case trivy.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}
