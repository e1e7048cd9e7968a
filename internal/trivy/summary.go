package trivy

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Counts tallies findings by severity.
type Counts struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium,omitempty"`
	Low      int `json:"low,omitempty"`
}

// Count tallies vulns.
func Count(vulns []Vulnerability) Counts {
	c := Counts{Total: len(vulns)}
	for _, v := range vulns {
		switch v.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityHigh:
			c.High++
		case SeverityMedium:
			c.Medium++
		case SeverityLow:
			c.Low++
		}
	}
	return c
}

// AtLeast counts findings at or above severity.
func AtLeast(vulns []Vulnerability, severity string) int {
	min, ok := severityRank[severity]
	if !ok {
		return 0
	}
	n := 0
	for _, v := range vulns {
		if severityRank[v.Severity] >= min {
			n++
		}
	}
	return n
}

// ValidSeverity reports whether s is a trivy severity name.
func ValidSeverity(s string) bool {
	_, ok := severityRank[s]
	return ok
}

// TopPackages returns the distinct package names among the first n
// findings, in order.
func TopPackages(vulns []Vulnerability, n int) []string {
	if n > len(vulns) {
		n = len(vulns)
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range vulns[:n] {
		if seen[v.Package] {
			continue
		}
		seen[v.Package] = true
		out = append(out, v.Package)
	}
	return out
}

// Comparison is the scan outcome of one image in compare mode.
type Comparison struct {
	Image string `json:"image"`
	Counts
	Err string `json:"error,omitempty"`
}

// Rank orders successful comparisons by total findings, lowest first. Ties
// keep the order the images were given in. Failed scans are dropped.
func Rank(results []Comparison) []Comparison {
	var ok []Comparison
	for _, r := range results {
		if r.Err == "" {
			ok = append(ok, r)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].Total < ok[j].Total })
	return ok
}

// Marker labels a ranked position: the first is the best, the last of
// several the worst.
func Marker(i, n int) string {
	switch {
	case i == 0:
		return "✅ BEST"
	case i == n-1:
		return "⚠️"
	default:
		return ""
	}
}

// Recommendation names the image to use.
func Recommendation(ranked []Comparison) string {
	if len(ranked) == 0 {
		return ""
	}
	return fmt.Sprintf("Use %s (lowest vulnerability count: %d)", ranked[0].Image, ranked[0].Total)
}

// RenderComparison writes ranked results as a table followed by the
// recommendation.
func RenderComparison(w io.Writer, ranked []Comparison) {
	if len(ranked) == 0 {
		fmt.Fprintln(w, "No results to compare")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Image", "Total", "Critical", "High", ""})
	for i, r := range ranked {
		table.Append([]string{
			r.Image,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Critical),
			strconv.Itoa(r.High),
			Marker(i, len(ranked)),
		})
	}
	table.Render()

	fmt.Fprintf(w, "\nRECOMMENDATION: %s\n", Recommendation(ranked))
}
