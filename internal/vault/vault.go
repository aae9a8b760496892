// Package vault supplies prompt definitions and metadata. The chain-backed
// store is a boundary collaborator; this package defines the interface the
// core needs from it, an in-memory implementation, a YAML file-backed
// library loader, and a process-lifetime read-through cache.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"promptvault/internal/access"
	"promptvault/internal/schema"
)

// DefaultVersion is the alias resolved when a caller omits the version.
const DefaultVersion = "latest"

var (
	// ErrNotFound signals that no prompt exists for the requested id/version.
	ErrNotFound = errors.New("vault: prompt not found")
)

// Definition is the immutable-once-loaded description of a prompt.
type Definition struct {
	ID              string                 `json:"id" yaml:"id"`
	Version         string                 `json:"version" yaml:"version"`
	Template        string                 `json:"template" yaml:"template"`
	Inputs          map[string]schema.Spec `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Dependencies    []string               `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	OutputSchema    map[string]any         `json:"outputSchema,omitempty" yaml:"outputSchema,omitempty"` // advisory only
	Access          access.Policy          `json:"access" yaml:"access"`
	Owner           string                 `json:"owner,omitempty" yaml:"owner,omitempty"`
	DefaultProvider string                 `json:"defaultProvider,omitempty" yaml:"defaultProvider,omitempty"`
	Settings        map[string]any         `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Metadata is the discoverable description of a prompt, used by search and
// updated (execution count, last executed) by successful pipeline runs.
type Metadata struct {
	Name           string    `json:"name" yaml:"name"`
	Description    string    `json:"description,omitempty" yaml:"description,omitempty"`
	Tags           []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Author         string    `json:"author,omitempty" yaml:"author,omitempty"`
	ExecutionCount int64     `json:"executionCount"`
	AverageRating  float64   `json:"averageRating,omitempty" yaml:"averageRating,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	LastExecutedAt time.Time `json:"lastExecutedAt,omitempty"`
}

// Record pairs a prompt's identity with its metadata for listing and search.
type Record struct {
	ID      string
	Version string
	Meta    *Metadata
}

// Vault is the lookup boundary the core requires from the prompt store.
// An empty version resolves to DefaultVersion. Implementations return
// ErrNotFound for unknown prompts; any other error is an infrastructure
// failure (surfaced as BLOCKCHAIN_ERROR by the pipeline).
type Vault interface {
	Get(ctx context.Context, id, version string) (*Definition, *Metadata, error)
}

// Lister enumerates all prompt records, for discovery. Optional interface.
type Lister interface {
	List(ctx context.Context) ([]Record, error)
}

// Key builds the canonical cache key for an id/version pair.
func Key(id, version string) string {
	if version == "" {
		version = DefaultVersion
	}
	return id + "@" + version
}

// MemVault is a deterministic in-memory Vault used by tests, the demo
// library, and as the backing store for FileVault.
type MemVault struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
}

type memEntry struct {
	def  *Definition
	meta *Metadata
}

// NewMemVault returns an empty in-memory vault.
func NewMemVault() *MemVault {
	return &MemVault{entries: make(map[string]*memEntry)}
}

// Put stores a definition with its metadata. The definition's parameter
// specs are normalized first: a contract violation (e.g. a required
// parameter carrying a default) rejects the whole prompt. The entry is
// stored under both id@version and id@latest, so the newest Put wins the
// latest alias.
func (v *MemVault) Put(def *Definition, meta *Metadata) error {
	if def.ID == "" {
		return fmt.Errorf("vault: definition has no id")
	}
	if def.Version == "" {
		def.Version = "1.0.0"
	}
	if err := schema.Normalize(def.Inputs); err != nil {
		return fmt.Errorf("vault: prompt %s: %w", def.ID, err)
	}
	if meta == nil {
		meta = &Metadata{Name: def.ID}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	entry := &memEntry{def: def, meta: meta}
	v.entries[Key(def.ID, def.Version)] = entry
	v.entries[Key(def.ID, DefaultVersion)] = entry
	return nil
}

// Get implements Vault.
func (v *MemVault) Get(_ context.Context, id, version string) (*Definition, *Metadata, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	entry, ok := v.entries[Key(id, version)]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, Key(id, version))
	}
	return entry.def, entry.meta, nil
}

// List implements Lister. The latest alias entries are skipped so each
// prompt version appears exactly once, in sorted key order.
func (v *MemVault) List(_ context.Context) ([]Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	keys := make([]string, 0, len(v.entries))
	for k := range v.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]Record, 0, len(keys))
	for _, k := range keys {
		entry := v.entries[k]
		if k == Key(entry.def.ID, DefaultVersion) && entry.def.Version != DefaultVersion {
			continue
		}
		records = append(records, Record{ID: entry.def.ID, Version: entry.def.Version, Meta: entry.meta})
	}
	return records, nil
}
