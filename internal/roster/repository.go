package roster

import (
	"context"
	"errors"
)

// ErrEntryNotFound is returned when no entry exists for an identity.
var ErrEntryNotFound = errors.New("roster: entry not found")

// Repository defines the interface for roster persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Save persists an entry, replacing any entry with the same IPU.
	Save(ctx context.Context, entry *Entry) error

	// FindByIPU retrieves the entry of an identity.
	// Returns ErrEntryNotFound if the identity is unknown.
	FindByIPU(ctx context.Context, ipu string) (*Entry, error)

	// List returns all entries.
	List(ctx context.Context) ([]*Entry, error)
}
