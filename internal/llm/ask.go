package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Prefixes of the degraded answers produced by Ask.
const (
	statusSentinel = "Error: AI returned status code "
	commSentinel   = "Error communicating with AI: "
)

// Ask runs one generation bounded by timeout. Failures never abort the
// caller: they come back as readable "Error: ..." text so that a report is
// still produced with whatever else was collected.
func Ask(ctx context.Context, g Generator, prompt string, timeout time.Duration) string {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := g.Complete(ctx, prompt)
	if err != nil {
		return ErrorText(err)
	}
	return out
}

// ErrorText converts a generation error to its sentinel text.
func ErrorText(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s%d", statusSentinel, se.Code)
	}
	return commSentinel + err.Error()
}

// IsErrorText reports whether s is a degraded answer from Ask.
func IsErrorText(s string) bool {
	return strings.HasPrefix(s, statusSentinel) || strings.HasPrefix(s, commSentinel)
}
