package response

import (
	"fmt"
	"strings"
)

// DeduplicateTrailingRepeat drops a concluding passage that a generator
// emitted twice. For split points between a third and a half of the text,
// when the right-trimmed head ends with the trimmed tail, the head is kept.
// The check repeats until nothing changes, so applying it twice is the same
// as applying it once. Paraphrased repeats are not detected.
func DeduplicateTrailingRepeat(text string) string {
	for {
		next, changed := dedupeOnce(text)
		if !changed {
			return text
		}
		text = next
	}
}

func dedupeOnce(text string) (string, bool) {
	r := []rune(text)
	n := len(r)
	for split := n / 3; split <= n/2; split++ {
		head := strings.TrimRight(string(r[:split]), " \t\r\n")
		tail := strings.TrimSpace(string(r[split:]))
		if tail != "" && strings.HasSuffix(head, tail) {
			return head, head != text
		}
	}
	return text, false
}

// StripCodeFences removes a surrounding markdown fence such as ```hcl ... ```
// and any stray fence lines inside the text.
func StripCodeFences(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// ExtractJSON extracts a JSON object or array from noisy model output.
func ExtractJSON(s string) (string, error) {
	s = strings.TrimSpace(StripCodeFences(s))
	if len(s) == 0 {
		return "", fmt.Errorf("empty LLM output")
	}

	// If starts with { or [, assume valid JSON
	if s[0] == '{' || s[0] == '[' {
		return s, nil
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object detected in output")
	}

	return s[start : end+1], nil
}
