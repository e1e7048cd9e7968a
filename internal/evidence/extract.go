// This file turns large, noisy tool output into a small context window.

package evidence

import (
	"fmt"
	"sort"
	"strings"
)

// TruncationMarker is appended whenever rendered evidence is cut to budget.
const TruncationMarker = "\n... (truncated for brevity)"

// DefaultFallbackLines is the tail size used when no keyword matches.
const DefaultFallbackLines = 40

// Document is an immutable, ordered sequence of lines.
type Document struct {
	lines []string
}

// NewDocument splits text into lines. A single trailing newline does not
// produce an extra empty line, and empty text yields an empty document.
func NewDocument(text string) Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return Document{}
	}
	return Document{lines: strings.Split(text, "\n")}
}

// Lines builds a document from already split lines. A single empty line is
// the empty document, as NewDocument("") is.
func Lines(lines []string) Document {
	if len(lines) == 1 && lines[0] == "" {
		return Document{}
	}
	cp := make([]string, len(lines))
	copy(cp, lines)
	return Document{lines: cp}
}

// Len returns the number of lines.
func (d Document) Len() int { return len(d.lines) }

// Empty reports whether the document has no lines.
func (d Document) Empty() bool { return len(d.lines) == 0 }

// Slice renders the lines covered by w.
func (d Document) Slice(w Window) string {
	return strings.Join(d.lines[w.Start:w.End], "\n")
}

// Window is a half-open line range [Start, End) over a Document.
type Window struct {
	Start int
	End   int
}

// Len returns the number of lines in the window.
func (w Window) Len() int { return w.End - w.Start }

// Contains reports whether line index i falls inside the window.
func (w Window) Contains(i int) bool { return i >= w.Start && i < w.End }

// Matches returns the indexes of lines matching any keyword, ascending.
func Matches(doc Document, keywords Keywords) []int {
	var idx []int
	for i, line := range doc.lines {
		if keywords.Match(line) {
			idx = append(idx, i)
		}
	}
	return idx
}

// MergeWindows folds overlapping or touching windows into one.
// Input need not be sorted; output is sorted by Start and pairwise disjoint.
func MergeWindows(windows []Window) []Window {
	if len(windows) == 0 {
		return nil
	}
	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sortWindows(sorted)

	merged := []Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if w.Start <= last.End {
			if w.End > last.End {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

func sortWindows(ws []Window) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].Start != ws[j].Start {
			return ws[i].Start < ws[j].Start
		}
		return ws[i].End < ws[j].End
	})
}

// MatchWindows expands every keyword match into a context window and merges
// the result. Every match index ends up in exactly one returned window.
func MatchWindows(doc Document, keywords Keywords, before, after int) []Window {
	before = max(before, 0)
	after = max(after, 0)

	var windows []Window
	for _, i := range Matches(doc, keywords) {
		windows = append(windows, Window{Start: max(0, i-before), End: min(doc.Len(), i+after+1)})
	}
	return MergeWindows(windows)
}

// Extract renders the keyword windows of doc, labelled "Error Block", falling
// back to the last DefaultFallbackLines lines when nothing matches.
func Extract(doc Document, keywords Keywords, before, after, charBudget int) string {
	p := Profile{
		Keywords:      keywords,
		Before:        before,
		After:         after,
		Budget:        charBudget,
		FallbackLines: DefaultFallbackLines,
	}
	return p.ExtractDocument(doc)
}

// Truncate cuts s to budget runes and appends TruncationMarker if it was cut.
func Truncate(s string, budget int) string {
	budget = max(budget, 0)
	r := []rune(s)
	if len(r) <= budget {
		return s
	}
	return string(r[:budget]) + TruncationMarker
}

func renderBlocks(doc Document, windows []Window, label string) string {
	var b strings.Builder
	for n, w := range windows {
		if n > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- %s %d ---\n", label, n+1)
		b.WriteString(doc.Slice(w))
	}
	return b.String()
}
