// Package roster keeps the coordinator's view of worker ids per identity.
//
// For every host.principal identity the roster tracks the ids hosts have
// reported and a counter for minting new candidates. The roster is advisory:
// hosts still claim ids through their local lock files.
package roster

import (
	"errors"
	"slices"
	"time"
)

// Static errors for roster operations.
var (
	// ErrIdentityRequired is returned when the identity is empty.
	ErrIdentityRequired = errors.New("roster: identity is required")
	// ErrInvalidWorkerID is returned for negative worker ids.
	ErrInvalidWorkerID = errors.New("roster: worker id must not be negative")
)

// Entry is the roster state of one identity.
type Entry struct {
	// IPU is the host.principal identity.
	IPU string `json:"ipu"`
	// Next is the lower bound for the next minted id.
	Next int64 `json:"next"`
	// IDs are the known worker ids, sorted ascending without duplicates.
	IDs []int64 `json:"ids"`
	// UpdatedAt is when the entry last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntry creates an empty entry for ipu.
func NewEntry(ipu string) *Entry {
	return &Entry{IPU: ipu, IDs: []int64{}}
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	c.IDs = slices.Clone(e.IDs)
	if c.IDs == nil {
		c.IDs = []int64{}
	}
	return &c
}

// Mint returns a new candidate id: the larger of the counter and one past the
// highest known id. The id is recorded as known and the counter advanced.
// Ids are never reused, even once they exceed a client's namespace.
func (e *Entry) Mint(now time.Time) int64 {
	id := e.Next
	if n := len(e.IDs); n > 0 && e.IDs[n-1]+1 > id {
		id = e.IDs[n-1] + 1
	}
	e.IDs = append(e.IDs, id)
	e.Next = id + 1
	e.UpdatedAt = now
	return id
}

// Merge adds ids to the known set and reports whether anything changed.
// Negative ids are ignored.
func (e *Entry) Merge(ids []int64, now time.Time) bool {
	changed := false
	for _, id := range ids {
		if id < 0 {
			continue
		}
		i, found := slices.BinarySearch(e.IDs, id)
		if found {
			continue
		}
		e.IDs = slices.Insert(e.IDs, i, id)
		changed = true
	}
	if changed {
		e.UpdatedAt = now
	}
	return changed
}

// normalize sorts and deduplicates IDs, dropping negatives.
func (e *Entry) normalize() {
	ids := make([]int64, 0, len(e.IDs))
	for _, id := range e.IDs {
		if id >= 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	e.IDs = slices.Compact(ids)
	if e.Next < 0 {
		e.Next = 0
	}
}
