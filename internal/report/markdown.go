package report

import (
	"fmt"
	"io"
	"strings"
)

// RenderMarkdown writes a report as a Markdown document.
func RenderMarkdown(w io.Writer, r *Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# opslens %s Report\n\n", r.Tool)
	fmt.Fprintf(&b, "**Subject:** %s  \n", r.Subject)
	if !r.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "**Generated:** %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}
	b.WriteString("\n")

	if len(r.Facts) > 0 {
		b.WriteString("| Field | Value |\n|-------|-------|\n")
		for _, f := range r.Facts {
			fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(f.Label), escapeCell(f.Value))
		}
		b.WriteString("\n")
	}

	if r.Sections.Len() > 0 {
		for _, s := range r.Sections.Sections() {
			fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Key, s.Value)
		}
	} else if r.Analysis != "" {
		fmt.Fprintf(&b, "## Analysis\n\n%s\n\n", r.Analysis)
	}

	if len(r.Details) > 0 {
		b.WriteString("## Details\n\n")
		for _, d := range r.Details {
			fmt.Fprintf(&b, "### %s\n\n", d.Title)
			for _, f := range d.Facts {
				fmt.Fprintf(&b, "- **%s:** %s\n", f.Label, f.Value)
			}
			if len(d.Facts) > 0 {
				b.WriteString("\n")
			}
			if d.Text != "" {
				b.WriteString(d.Text + "\n\n")
			}
		}
	}

	if len(r.NextSteps) > 0 {
		b.WriteString("## Next Steps\n\n```bash\n")
		for _, s := range r.NextSteps {
			b.WriteString(s + "\n")
		}
		b.WriteString("```\n\n")
	}

	if len(r.Links) > 0 {
		b.WriteString("## Links\n\n")
		for _, l := range r.Links {
			fmt.Fprintf(&b, "- [%s](%s)\n", l.Label, l.Value)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
