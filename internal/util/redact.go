package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// secretPatterns match credentials that commonly leak into CI and pod logs.
// The last submatch of each pattern is the secret itself.
var secretPatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"gh", regexp.MustCompile(`\b(gh[pousr]_[A-Za-z0-9]{20,}|github_pat_[A-Za-z0-9_]{20,})\b`)},
	{"aws", regexp.MustCompile(`\b((?:AKIA|ASIA)[A-Z0-9]{16})\b`)},
	{"bearer", regexp.MustCompile(`(?i)\b(?:authorization:\s*)?bearer\s+([A-Za-z0-9\-._~+/]{16,}=*)`)},
	{"secret", regexp.MustCompile(`(?i)(?:password|passwd|secret|token|api[_-]?key)\s*[=:]\s*["']?([^\s"',;]{6,})`)},
}

// Redactor replaces credentials in evidence with deterministic placeholders
// before it leaves the machine, so repeated values stay recognizable.
type Redactor struct {
	enabled bool
	cache   map[string]string
	mu      sync.RWMutex
}

// NewRedactor creates a new redactor
func NewRedactor(enabled bool) *Redactor {
	return &Redactor{
		enabled: enabled,
		cache:   make(map[string]string),
	}
}

// Redact masks every known credential pattern in text.
func (r *Redactor) Redact(text string) string {
	if r == nil || !r.enabled || text == "" {
		return text
	}
	for _, p := range secretPatterns {
		kind := p.kind
		re := p.re
		text = re.ReplaceAllStringFunc(text, func(match string) string {
			sub := re.FindStringSubmatch(match)
			secret := sub[len(sub)-1]
			if strings.HasPrefix(secret, "<redacted-") {
				return match
			}
			return replaceLast(match, secret, r.placeholder(kind, secret))
		})
	}
	return text
}

// IsEnabled returns whether redaction is enabled
func (r *Redactor) IsEnabled() bool {
	return r != nil && r.enabled
}

// placeholder generates a deterministic marker from a secret
func (r *Redactor) placeholder(kind, secret string) string {
	r.mu.RLock()
	if cached, exists := r.cache[secret]; exists {
		r.mu.RUnlock()
		return cached
	}
	r.mu.RUnlock()

	hash := sha256.Sum256([]byte(secret))
	marker := fmt.Sprintf("<redacted-%s-%s>", kind, hex.EncodeToString(hash[:])[:8])

	r.mu.Lock()
	r.cache[secret] = marker
	r.mu.Unlock()

	return marker
}

func replaceLast(s, old, repl string) string {
	i := strings.LastIndex(s, old)
	if i < 0 {
		return s
	}
	return s[:i] + repl + s[i+len(old):]
}
