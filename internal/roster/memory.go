package roster

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access; durability comes from
// periodic snapshots.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryRepository creates a new in-memory roster repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[string]*Entry),
	}
}

// Save stores a clone of entry to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.IPU] = entry.Clone()
	return nil
}

// FindByIPU returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByIPU(_ context.Context, ipu string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[ipu]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return entry.Clone(), nil
}

// List returns clones of all entries ordered by IPU.
func (r *MemoryRepository) List(_ context.Context) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, entry.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].IPU < result[j].IPU })
	return result, nil
}
