package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of remembered answers per run.
const DefaultCacheSize = 256

// Cache remembers successful answers by prompt so that identical prompts
// (the same CVE across compared images) hit the model once.
type Cache struct {
	next    Generator
	entries *lru.Cache[string, string]
}

// NewCache wraps next with an LRU of the given size.
func NewCache(next Generator, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Cache{next: next, entries: entries}, nil
}

// Complete returns a cached answer or asks the wrapped generator.
// Errors are not cached.
func (c *Cache) Complete(ctx context.Context, prompt string) (string, error) {
	key := cacheKey(prompt)
	if out, ok := c.entries.Get(key); ok {
		return out, nil
	}
	out, err := c.next.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.entries.Add(key, out)
	return out, nil
}

// Len returns the number of cached answers.
func (c *Cache) Len() int { return c.entries.Len() }

func cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
