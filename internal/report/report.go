package report

import (
	"strings"
	"time"

	"github.com/ppiankov/opslens/internal/llm"
	"github.com/ppiankov/opslens/internal/response"
)

// Fact is one labelled value shown in a report header, e.g. Status: Pending.
type Fact struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Report is the display record of one analysed entity: one image, one pod,
// one billing window, one workflow run or one generation request.
type Report struct {
	Tool        string          `json:"tool"`
	Subject     string          `json:"subject"`
	GeneratedAt time.Time       `json:"generated_at"`
	Facts       []Fact          `json:"facts,omitempty"`
	Findings    any             `json:"findings,omitempty"`
	Sections    response.Parsed `json:"sections"`
	Analysis    string          `json:"analysis,omitempty"`
	NextSteps   []string        `json:"next_steps,omitempty"`
	Details     []Detail        `json:"details,omitempty"`
	Links       []Fact          `json:"links,omitempty"`
}

// Detail is a titled sub-block rendered after the analysis: one explained
// vulnerability, one service breakdown line, one generated file.
type Detail struct {
	Title string `json:"title"`
	Facts []Fact `json:"facts,omitempty"`
	Text  string `json:"text,omitempty"`
}

// New starts a report for subject.
func New(tool, subject string) *Report {
	return &Report{
		Tool:        tool,
		Subject:     subject,
		GeneratedAt: time.Now().UTC(),
	}
}

// AddFact appends a header fact. Blank values are skipped.
func (r *Report) AddFact(label, value string) *Report {
	if strings.TrimSpace(value) != "" {
		r.Facts = append(r.Facts, Fact{Label: label, Value: value})
	}
	return r
}

// AddLink appends a named URL.
func (r *Report) AddLink(label, url string) *Report {
	if url != "" {
		r.Links = append(r.Links, Fact{Label: label, Value: url})
	}
	return r
}

// AddNextStep appends a suggested command.
func (r *Report) AddNextStep(step string) *Report {
	if step != "" {
		r.NextSteps = append(r.NextSteps, step)
	}
	return r
}

// AddDetail appends a sub-block. Blank facts are skipped.
func (r *Report) AddDetail(title, text string, facts ...Fact) *Report {
	d := Detail{Title: title, Text: strings.TrimSpace(text)}
	for _, f := range facts {
		if strings.TrimSpace(f.Value) != "" {
			d.Facts = append(d.Facts, f)
		}
	}
	r.Details = append(r.Details, d)
	return r
}

// SetAnalysis stores the raw generation output and the sections parsed from
// it. Repeated trailing content is removed before parsing. A degraded
// "Error: ..." answer is kept as analysis text with no sections. headings
// are passed to response.Parse.
func (r *Report) SetAnalysis(raw string, mode response.Mode, headings ...string) *Report {
	raw = strings.TrimSpace(response.DeduplicateTrailingRepeat(raw))
	r.Analysis = raw
	if llm.IsErrorText(raw) {
		r.Sections = response.Parsed{}
		return r
	}
	r.Sections = response.Parse(raw, mode, headings...)
	return r
}

// Failed reports whether the analysis is a degraded error answer.
func (r *Report) Failed() bool { return llm.IsErrorText(r.Analysis) }

// Fact returns the value of the first fact with label.
func (r *Report) Fact(label string) string {
	for _, f := range r.Facts {
		if f.Label == label {
			return f.Value
		}
	}
	return ""
}
