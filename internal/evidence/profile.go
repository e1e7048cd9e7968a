package evidence

// Profile bundles the extraction parameters of one call site.
type Profile struct {
	Keywords      Keywords
	Before        int
	After         int
	Budget        int
	FallbackLines int
	Label         string // block header, default "Error Block"
}

// Profiles used by the tools.
var (
	// WorkflowLogs keeps 8 lines before and 11 after each CI failure line.
	WorkflowLogs = Profile{
		Keywords:      FailureKeywords,
		Before:        8,
		After:         11,
		Budget:        1500,
		FallbackLines: 40,
		Label:         "Error Block",
	}

	// PodLogs is tuned for container stdout/stderr.
	PodLogs = Profile{
		Keywords:      RuntimeKeywords,
		Before:        3,
		After:         5,
		Budget:        2000,
		FallbackLines: 50,
		Label:         "Log Block",
	}

	// PodEvents is tuned for rendered pod events.
	PodEvents = Profile{
		Keywords:      EventKeywords,
		Before:        0,
		After:         1,
		Budget:        1000,
		FallbackLines: 20,
		Label:         "Event Block",
	}
)

// WithKeywords returns a copy of p matching k in addition to p's keywords.
func (p Profile) WithKeywords(k Keywords) Profile {
	if len(k) == 0 {
		return p
	}
	p.Keywords = p.Keywords.With(k...)
	return p
}

// Extract runs the profile over raw text.
func (p Profile) Extract(text string) string {
	return p.ExtractDocument(NewDocument(text))
}

// ExtractDocument runs the profile over doc. The result is empty only when
// doc is empty, and never longer than Budget runes plus TruncationMarker.
func (p Profile) ExtractDocument(doc Document) string {
	if doc.Empty() {
		return ""
	}

	label := p.Label
	if label == "" {
		label = "Error Block"
	}

	var rendered string
	if windows := MatchWindows(doc, p.Keywords, p.Before, p.After); len(windows) > 0 {
		rendered = renderBlocks(doc, windows, label)
	} else {
		rendered = doc.Slice(p.tail(doc))
	}

	return Truncate(rendered, p.Budget)
}

func (p Profile) tail(doc Document) Window {
	n := p.FallbackLines
	if n <= 0 {
		n = DefaultFallbackLines
	}
	return Window{Start: max(0, doc.Len()-n), End: doc.Len()}
}
