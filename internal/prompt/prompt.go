package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// ID names a registered template.
type ID string

// Template identifiers.
const (
	VulnerabilityExplanation ID = "vulnerability-explanation"
	ImageSummary             ID = "image-summary"
	PodDiagnosis             ID = "pod-diagnosis"
	CostAnalysis             ID = "cost-analysis"
	SavingsTips              ID = "savings-tips"
	WorkflowFailure          ID = "workflow-failure"
	TerraformGeneration      ID = "terraform-generation"
)

// Kind separates templates that analyse evidence from templates that
// generate artifacts.
type Kind int

const (
	Analysis Kind = iota
	Generation
)

func (k Kind) String() string {
	if k == Generation {
		return "generation"
	}
	return "analysis"
}

// Field declares one template input.
type Field struct {
	Name     string
	Required bool
	// Limit is the maximum rune count kept from the value; 0 keeps everything.
	Limit int
	// Default replaces a blank optional value.
	Default string
	// Format wraps a non-blank value, e.g. to add a heading around it.
	Format string
}

// Template is a fixed instruction text with {{FIELD}} placeholders.
type Template struct {
	ID     ID
	Kind   Kind
	Text   string
	Fields []Field

	// Headings are the section titles the answer is asked to use.
	Headings []string
}

// MissingFieldError is returned when required fields are absent or blank.
type MissingFieldError struct {
	Template ID
	Fields   []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("template %s: missing required field(s): %s", e.Template, strings.Join(e.Fields, ", "))
}

// Placeholder returns the token a field occupies in template text.
func Placeholder(name string) string {
	return "{{" + strings.ToUpper(name) + "}}"
}

// Lookup returns the registered template for id.
func Lookup(id ID) (Template, bool) {
	t, ok := registry[id]
	return t, ok
}

// Headings returns the section titles declared by the template id.
func Headings(id ID) []string {
	return registry[id].Headings
}

// IDs lists the registered template identifiers in sorted order.
func IDs() []ID {
	ids := make([]ID, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Build renders the template registered under id with the given fields.
func Build(id ID, fields map[string]string) (string, error) {
	t, ok := registry[id]
	if !ok {
		return "", fmt.Errorf("invalid template: %s", id)
	}
	return t.Render(fields)
}

// Render interpolates fields into the template. Every declared field is
// truncated to its own limit independently of the others.
func (t Template) Render(fields map[string]string) (string, error) {
	var missing []string
	for _, f := range t.Fields {
		if f.Required && strings.TrimSpace(fields[f.Name]) == "" {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &MissingFieldError{Template: t.ID, Fields: missing}
	}

	// single pass, so placeholders inside values are left alone
	pairs := make([]string, 0, 2*len(t.Fields))
	for _, f := range t.Fields {
		pairs = append(pairs, Placeholder(f.Name), f.value(fields[f.Name]))
	}
	return strings.NewReplacer(pairs...).Replace(t.Text), nil
}

func (f Field) value(v string) string {
	if strings.TrimSpace(v) == "" {
		return f.Default
	}
	v = truncate(v, f.Limit)
	if f.Format != "" {
		return fmt.Sprintf(f.Format, v)
	}
	return v
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
