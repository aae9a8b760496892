package vault

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a process-lifetime read-through cache over a Vault, keyed
// id@version. It also owns the live execution counters: the backing vault's
// metadata is read-only, while counts and last-executed timestamps accumulate
// here for the life of the process.
//
// Populate-on-miss is idempotent: two concurrent misses for the same key both
// fetch and converge on equivalent entries. Counter increments are atomic so
// concurrent successful executions of the same prompt never lose a count.
type Cache struct {
	vault Vault

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	def  *Definition
	meta *Metadata

	execCount    atomic.Int64
	lastExecMu   sync.Mutex
	lastExecuted time.Time
}

// NewCache wraps a Vault with a read-through cache.
func NewCache(v Vault) *Cache {
	return &Cache{vault: v, entries: make(map[string]*cacheEntry)}
}

// Get returns the definition and a metadata snapshot for id/version,
// fetching from the backing vault on a miss. The snapshot's ExecutionCount
// and LastExecutedAt reflect executions recorded through this cache on top
// of the fetched baseline.
func (c *Cache) Get(ctx context.Context, id, version string) (*Definition, *Metadata, error) {
	key := Key(id, version)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		def, meta, err := c.vault.Get(ctx, id, version)
		if err != nil {
			return nil, nil, err
		}
		entry = &cacheEntry{def: def, meta: meta}

		// Register the entry under both the requested key and the resolved
		// version key, so a latest-alias fetch and a pinned fetch share one
		// set of counters.
		resolvedKey := Key(def.ID, def.Version)
		c.mu.Lock()
		if existing, raced := c.entries[resolvedKey]; raced {
			// Another caller populated first; keep its counters.
			entry = existing
		} else {
			c.entries[resolvedKey] = entry
		}
		if key != resolvedKey {
			c.entries[key] = entry
		}
		c.mu.Unlock()
	}

	return entry.def, entry.snapshot(), nil
}

// RecordExecution bumps the prompt's execution counter and last-executed
// timestamp. Only successful pipeline runs call this; a prompt never
// executed through this cache is a no-op.
func (c *Cache) RecordExecution(id, version string, at time.Time) {
	c.mu.RLock()
	entry, ok := c.entries[Key(id, version)]
	c.mu.RUnlock()
	if !ok {
		return
	}

	entry.execCount.Add(1)
	entry.lastExecMu.Lock()
	if at.After(entry.lastExecuted) {
		entry.lastExecuted = at
	}
	entry.lastExecMu.Unlock()
}

// List delegates to the backing vault when it supports listing, overlaying
// live execution counters onto the returned metadata.
func (c *Cache) List(ctx context.Context) ([]Record, error) {
	lister, ok := c.vault.(Lister)
	if !ok {
		return nil, nil
	}
	records, err := lister.List(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, rec := range records {
		if entry, cached := c.entries[Key(rec.ID, rec.Version)]; cached {
			records[i].Meta = entry.snapshot()
		}
	}
	return records, nil
}

// snapshot returns a copy of the metadata with live counters merged in.
func (e *cacheEntry) snapshot() *Metadata {
	meta := *e.meta
	meta.ExecutionCount += e.execCount.Load()
	e.lastExecMu.Lock()
	if e.lastExecuted.After(meta.LastExecutedAt) {
		meta.LastExecutedAt = e.lastExecuted
	}
	e.lastExecMu.Unlock()
	return &meta
}
