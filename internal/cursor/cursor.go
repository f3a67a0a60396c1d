// Package cursor implements the per-cluster resourceVersion cursor shared
// between list and watch requests.
package cursor

import "sync"

// Cursor is a monotonically advancing resourceVersion, safe for concurrent
// use. It is updated from metadata.resourceVersion of every listed/watched
// object and from the acceptable version embedded in a "too old" error.
type Cursor struct {
	mu      sync.Mutex
	current uint64
}

// Get returns the current resourceVersion.
func (c *Cursor) Get() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Observe raises the cursor to v if v is greater than the current value.
// Idempotent for v <= current.
func (c *Cursor) Observe(v uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v > c.current {
		c.current = v
	}
}
