// Package claim provides crash-safe exclusive ownership of a named file.
// Ownership is an OS advisory lock: it is dropped by Release or by the
// operating system when the owning process exits, so a leftover file with
// no live lock is just a free slot for the next claimant.
package claim

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
)

// errLocked is returned by the platform lock functions when another open
// file description already holds the lock.
var errLocked = errors.New("claim: resource is locked")

// Claim is an exclusive hold on a single resource file.
// A Claim is safe for concurrent use.
type Claim struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// New returns an unacquired Claim for the file at path.
func New(path string) *Claim {
	return &Claim{path: path}
}

// Path returns the resource file path.
func (c *Claim) Path() string {
	return c.path
}

// Held reports whether this Claim currently holds the lock.
func (c *Claim) Held() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.f != nil
}

// TryAcquire attempts to take the lock without blocking. The resource file is
// created if it does not exist. It returns false with a nil error when some
// other holder, in this process or another, owns the lock.
func (c *Claim) TryAcquire() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.f != nil {
		return true, nil
	}

	f, err := os.OpenFile(c.path, os.O_RDWR|os.O_CREATE, 0o644) // #nosec G304 - path is built by the allocator
	if err != nil {
		return false, fmt.Errorf("claim: open %s: %w", c.path, err)
	}

	if err := lockFile(f); err != nil {
		_ = f.Close()
		if errors.Is(err, errLocked) {
			return false, nil
		}
		return false, fmt.Errorf("claim: lock %s: %w", c.path, err)
	}

	// The pid is informational only; a failure to record it does not
	// weaken the lock.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	c.f = f
	return true, nil
}

// Release drops the lock. It is idempotent and safe to call on a Claim that
// was never acquired. The resource file itself is left in place.
func (c *Claim) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.f == nil {
		return nil
	}

	f := c.f
	c.f = nil

	unlockErr := unlockFile(f)
	closeErr := f.Close()
	if unlockErr != nil {
		return fmt.Errorf("claim: unlock %s: %w", c.path, unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("claim: close %s: %w", c.path, closeErr)
	}
	return nil
}
