package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
)

// Ensure ResponseCache implements the interface.
var _ driven.ResponseCache = (*ResponseCache)(nil)

// ResponseCache keeps portal responses for the lifetime of the process.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewResponseCache creates an empty cache.
func NewResponseCache() *ResponseCache {
	return &ResponseCache{entries: make(map[string][]byte)}
}

// Get returns a cached body and whether it was found.
func (c *ResponseCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.entries[key]
	return slices.Clone(body), ok, nil
}

// Put stores a copy of body.
func (c *ResponseCache) Put(_ context.Context, key string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = slices.Clone(body)
	return nil
}

// Clear removes every entry.
func (c *ResponseCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	return nil
}

// Len returns the number of entries.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
