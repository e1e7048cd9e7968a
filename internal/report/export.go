package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format represents the export format type.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ExportMetadata contains metadata about the export.
type ExportMetadata struct {
	GeneratedAt    time.Time `json:"generatedAt"`
	OpslensVersion string    `json:"opslensVersion"`
	Tool           string    `json:"tool"`
}

// JSONExport wraps the reports with metadata for JSON output.
type JSONExport struct {
	Metadata ExportMetadata `json:"metadata"`
	Reports  []*Report      `json:"reports"`
}

// Exporter handles exporting reports in various formats.
type Exporter struct {
	Format   Format
	Metadata ExportMetadata
}

// DetectFormat detects the export format from the file extension.
func DetectFormat(path string) Format {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return FormatJSON
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Export writes reports in the exporter's format.
func (e *Exporter) Export(w io.Writer, reports ...*Report) error {
	switch e.Format {
	case FormatJSON:
		return e.exportJSON(w, reports)
	case FormatMarkdown:
		for i, r := range reports {
			if i > 0 {
				fmt.Fprintln(w, "\n---")
			}
			if err := RenderMarkdown(w, r); err != nil {
				return err
			}
		}
		return nil
	case FormatText:
		for _, r := range reports {
			RenderHuman(w, r)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", e.Format)
	}
}

func (e *Exporter) exportJSON(w io.Writer, reports []*Report) error {
	if reports == nil {
		reports = []*Report{}
	}
	export := JSONExport{
		Metadata: e.Metadata,
		Reports:  reports,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Save writes reports to path in the format implied by its extension,
// creating parent directories as needed.
func Save(path, version string, reports ...*Report) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tool := ""
	if len(reports) > 0 {
		tool = reports[0].Tool
	}
	exporter := Exporter{
		Format: DetectFormat(path),
		Metadata: ExportMetadata{
			GeneratedAt:    time.Now().UTC(),
			OpslensVersion: version,
			Tool:           tool,
		},
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := exporter.Export(file, reports...); err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}
	return file.Close()
}

// PrettyJSON renders v as indented JSON.
func PrettyJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
