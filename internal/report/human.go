package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/opslens/internal/llm"
)

const separator = "────────────────────────────────────────"

// styles are bound to the writer's renderer so files get plain text.
type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	section lipgloss.Style
	step    lipgloss.Style
	dim     lipgloss.Style
	err     lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),  // Blue
		label:   r.NewStyle().Foreground(lipgloss.Color("245")),            // Gray
		section: r.NewStyle().Bold(true).Foreground(lipgloss.Color("208")), // Orange
		step:    r.NewStyle().Foreground(lipgloss.Color("46")),             // Green
		dim:     r.NewStyle().Foreground(lipgloss.Color("240")),
		err:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// RenderHuman prints a report for the console. Section keys are printed
// verbatim, each followed by its trimmed text.
func RenderHuman(w io.Writer, r *Report) {
	st := newStyles(w)

	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("%s: %s", r.Tool, r.Subject)))
	if !r.GeneratedAt.IsZero() {
		fmt.Fprintln(w, st.dim.Render("Generated: "+r.GeneratedAt.Format("2006-01-02 15:04:05 MST")))
	}
	fmt.Fprintln(w, separator)

	if len(r.Facts) > 0 {
		width := 0
		for _, f := range r.Facts {
			width = max(width, len(f.Label))
		}
		for _, f := range r.Facts {
			label := st.label.Render(fmt.Sprintf("%-*s", width+1, f.Label+":"))
			fmt.Fprintf(w, "%s %s\n", label, f.Value)
		}
		fmt.Fprintln(w)
	}

	switch {
	case llm.IsErrorText(r.Analysis):
		fmt.Fprintln(w, st.err.Render(r.Analysis))
		fmt.Fprintln(w)
	case r.Sections.Len() > 0:
		for _, s := range r.Sections.Sections() {
			fmt.Fprintln(w, st.section.Render(s.Key))
			fmt.Fprintln(w, s.Value)
			fmt.Fprintln(w)
		}
	case r.Analysis != "":
		fmt.Fprintln(w, r.Analysis)
		fmt.Fprintln(w)
	}

	for i, d := range r.Details {
		fmt.Fprintln(w, st.section.Render(fmt.Sprintf("[%d] %s", i+1, d.Title)))
		for _, f := range d.Facts {
			fmt.Fprintf(w, "    %s %s\n", st.label.Render(f.Label+":"), f.Value)
		}
		if d.Text != "" {
			if len(d.Facts) > 0 {
				fmt.Fprintln(w)
			}
			for _, line := range strings.Split(d.Text, "\n") {
				fmt.Fprintln(w, "    "+line)
			}
		}
		fmt.Fprintln(w, st.dim.Render(separator))
	}
	if len(r.Details) > 0 {
		fmt.Fprintln(w)
	}

	if len(r.NextSteps) > 0 {
		fmt.Fprintln(w, st.section.Render("Next steps"))
		for _, s := range r.NextSteps {
			fmt.Fprintln(w, "  "+st.step.Render("$ "+s))
		}
		fmt.Fprintln(w)
	}

	if len(r.Links) > 0 {
		for _, l := range r.Links {
			fmt.Fprintf(w, "%s %s\n", st.label.Render(l.Label+":"), l.Value)
		}
		fmt.Fprintln(w)
	}
}
