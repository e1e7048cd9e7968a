package evidence

import "strings"

// Keywords is an ordered set of lower-cased substrings that mark a line as
// interesting. Order only matters for readability; matching is existential.
type Keywords []string

// NewKeywords lower-cases, trims and de-duplicates the given keywords.
func NewKeywords(words ...string) Keywords {
	seen := make(map[string]bool, len(words))
	out := make(Keywords, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// ParseKeywords splits a comma-separated flag value into a keyword set.
func ParseKeywords(s string) Keywords {
	if s == "" {
		return nil
	}
	return NewKeywords(strings.Split(s, ",")...)
}

// Match reports whether line contains any keyword, ignoring case.
func (k Keywords) Match(line string) bool {
	if len(k) == 0 {
		return false
	}
	lower := strings.ToLower(line)
	for _, w := range k {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// With returns a new set holding k followed by extra.
func (k Keywords) With(extra ...string) Keywords {
	all := make([]string, 0, len(k)+len(extra))
	all = append(all, k...)
	all = append(all, extra...)
	return NewKeywords(all...)
}

// FailureKeywords matches CI job output.
var FailureKeywords = NewKeywords(
	"error:", "error ",
	"failed", "failure", "fail:",
	"not found", "does not exist", "no such file",
	"exception", "traceback",
	"fatal:", "cannot", "unable to",
	"exit code", "returned non-zero",
	"command not found", "permission denied",
)

// RuntimeKeywords matches application and container logs.
var RuntimeKeywords = NewKeywords(
	"error", "exception", "traceback", "panic",
	"fatal", "failed", "refused", "timeout", "timed out",
	"oomkilled", "out of memory", "killed",
	"permission denied", "no such file", "not found",
)

// EventKeywords matches `describe pod` style event lines.
var EventKeywords = NewKeywords(
	"warning", "failed", "backoff", "error",
	"unhealthy", "killing", "oomkilled", "evicted", "insufficient",
)
