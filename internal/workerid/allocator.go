// Package workerid assigns each process an exclusive worker id.
//
// Worker ids are backed by lock files named <host>.<principal>.lock.<NNNN>
// in a per-user coordination directory. A process owns an id exactly as long
// as it holds the OS lock on the matching file, so ids held by crashed
// processes become reusable without cleanup. A remote coordinator, when
// configured, helps hosts sharing an identity avoid collisions but never
// grants ownership by itself.
package workerid

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maauso/idworker/internal/claim"
	"github.com/maauso/idworker/internal/coordinator"
)

// Static errors for worker id allocation.
var (
	// ErrNamespaceExhausted is returned when every worker id is held.
	ErrNamespaceExhausted = errors.New("workerid: no worker id available")
	// ErrDirUnusable is returned when the coordination directory cannot be
	// created or listed.
	ErrDirUnusable = errors.New("workerid: coordination directory unusable")
	// ErrInvalidBits is returned for a worker id width outside [1, MaxWorkerIDBits].
	ErrInvalidBits = errors.New("workerid: invalid worker id bits")
)

const (
	// DefaultWorkerIDBits matches the default snowflake layout.
	DefaultWorkerIDBits = 10
	// MaxWorkerIDBits keeps every id within four decimal digits.
	MaxWorkerIDBits = 13

	defaultSyncTimeout = 5 * time.Second
)

// Strategy yields a worker id for the lifetime of a binding.
type Strategy interface {
	// Initialize claims a worker id. It is a no-op when already initialized.
	Initialize(ctx context.Context) error
	// WorkerID returns the claimed id, or -1 before a successful Initialize.
	WorkerID() int64
	// Release gives the id back and returns the strategy to its
	// uninitialized state.
	Release() error
}

// Compile-time check that Allocator implements Strategy.
var _ Strategy = (*Allocator)(nil)

// Allocator is the lock-file based Strategy.
type Allocator struct {
	dir         string
	host        string
	principal   string
	bits        uint
	coord       coordinator.Client
	logger      *slog.Logger
	random      io.Reader
	syncTimeout time.Duration

	mu       sync.Mutex
	workerID int64
	claim    *claim.Claim
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithDir sets the coordination directory. The default is $HOME/.idworkers.
func WithDir(dir string) Option {
	return func(a *Allocator) {
		a.dir = dir
	}
}

// WithHostAddress overrides the detected host address.
func WithHostAddress(host string) Option {
	return func(a *Allocator) {
		a.host = host
	}
}

// WithPrincipal overrides the OS user name.
func WithPrincipal(principal string) Option {
	return func(a *Allocator) {
		a.principal = principal
	}
}

// WithWorkerIDBits sets the width of the worker id namespace.
func WithWorkerIDBits(bits uint) Option {
	return func(a *Allocator) {
		a.bits = bits
	}
}

// WithCoordinator enables the coordinator tiers. A nil client disables them.
func WithCoordinator(c coordinator.Client) Option {
	return func(a *Allocator) {
		a.coord = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Allocator) {
		a.logger = logger
	}
}

// WithRandom sets the entropy source for the randomized tier.
func WithRandom(r io.Reader) Option {
	return func(a *Allocator) {
		a.random = r
	}
}

// WithSyncTimeout bounds the background coordinator sync.
func WithSyncTimeout(d time.Duration) Option {
	return func(a *Allocator) {
		a.syncTimeout = d
	}
}

// New creates an Allocator. Identity defaults are resolved here; the
// directory is only touched by Initialize.
func New(opts ...Option) (*Allocator, error) {
	a := &Allocator{
		bits:        DefaultWorkerIDBits,
		random:      rand.Reader,
		syncTimeout: defaultSyncTimeout,
		workerID:    -1,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.bits < 1 || a.bits > MaxWorkerIDBits {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBits, a.bits)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.host == "" {
		a.host = HostAddress()
	}
	if a.principal == "" {
		a.principal = Principal()
	} else {
		a.principal = sanitize(a.principal)
	}
	if a.dir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		a.dir = dir
	}
	return a, nil
}

// Dir returns the coordination directory.
func (a *Allocator) Dir() string { return a.dir }

// IPU returns the host.principal identity of this allocator.
func (a *Allocator) IPU() string { return IPU(a.host, a.principal) }

// MaxWorkerID returns the largest id in the namespace.
func (a *Allocator) MaxWorkerID() int64 { return int64(1)<<a.bits - 1 }

// WorkerID returns the claimed id, or -1 when not initialized.
func (a *Allocator) WorkerID() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.workerID
}

// Path returns the resource file path for id.
func (a *Allocator) Path(id int64) string {
	return filepath.Join(a.dir, ResourceName(a.host, a.principal, id))
}

// Initialize runs the claim protocol:
//
//  1. reuse an existing resource file for this identity;
//  2. on success, report local ids to the coordinator in the background;
//  3. otherwise sync with the coordinator, create the files it knows of
//     and retry step 1 once;
//  4. ask the coordinator for a fresh id;
//  5. derive an id from the IPv4 host address;
//  6. try every id in random order.
//
// Coordinator failures fall through to the next step.
func (a *Allocator) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.claim != nil {
		return nil
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrDirUnusable, err)
	}

	local, err := a.scan()
	if err != nil {
		return err
	}
	if c, id, ok := a.claimAny(local); ok {
		a.bind(id, c, "local")
		if a.coord != nil {
			a.startSync(ctx, local)
		}
		return nil
	}

	if a.coord != nil {
		if c, id, ok := a.claimSynced(ctx, local); ok {
			a.bind(id, c, "synced")
			return nil
		}
		if c, id, ok := a.claimIncremented(ctx); ok {
			a.bind(id, c, "coordinator")
			return nil
		}
	}

	if id, ok := addressWorkerID(a.host, a.MaxWorkerID()); ok {
		if c, ok := a.tryClaim(id); ok {
			a.bind(id, c, "address")
			return nil
		}
	}

	a.logger.Warn("falling back to a random worker id, uniqueness across hosts is not coordinated",
		slog.String("ipu", a.IPU()),
		slog.Int64("max_worker_id", a.MaxWorkerID()),
	)
	for _, id := range a.permutation() {
		if c, ok := a.tryClaim(id); ok {
			a.bind(id, c, "random")
			return nil
		}
	}

	return fmt.Errorf("%w: all %d ids held in %s", ErrNamespaceExhausted, a.MaxWorkerID()+1, a.dir)
}

// Release cancels any background sync, waits for it, and drops the claim.
func (a *Allocator) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.wg.Wait()

	if a.claim == nil {
		return nil
	}

	c := a.claim
	id := a.workerID
	a.claim = nil
	a.workerID = -1

	if err := c.Release(); err != nil {
		return fmt.Errorf("workerid: release %d: %w", id, err)
	}
	a.logger.Info("worker id released", slog.Int64("worker_id", id))
	return nil
}

func (a *Allocator) bind(id int64, c *claim.Claim, tier string) {
	a.workerID = id
	a.claim = c
	a.logger.Info("worker id claimed",
		slog.Int64("worker_id", id),
		slog.String("tier", tier),
		slog.String("path", c.Path()),
	)
}

// scan lists the in-range ids that have a resource file for this identity,
// in file name order.
func (a *Allocator) scan() ([]int64, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirUnusable, err)
	}

	prefix := a.IPU() + ".lock."
	maxID := a.MaxWorkerID()
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := parseResourceName(e.Name(), prefix)
		if !ok || id > maxID {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *Allocator) claimAny(ids []int64) (*claim.Claim, int64, bool) {
	for _, id := range ids {
		if c, ok := a.tryClaim(id); ok {
			return c, id, true
		}
	}
	return nil, 0, false
}

// tryClaim creates the resource file for id if needed and locks it.
// File errors are logged and treated as a miss.
func (a *Allocator) tryClaim(id int64) (*claim.Claim, bool) {
	c := claim.New(a.Path(id))
	ok, err := c.TryAcquire()
	if err != nil {
		a.logger.Warn("cannot claim worker id",
			slog.Int64("worker_id", id),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return c, ok
}

func (a *Allocator) claimSynced(ctx context.Context, local []int64) (*claim.Claim, int64, bool) {
	known, err := a.coord.Sync(ctx, a.IPU(), local)
	if err != nil {
		a.logger.Warn("coordinator sync failed", slog.String("error", err.Error()))
		return nil, 0, false
	}

	maxID := a.MaxWorkerID()
	for _, id := range known {
		if id < 0 || id > maxID {
			continue
		}
		if err := touch(a.Path(id)); err != nil {
			a.logger.Warn("cannot create resource file",
				slog.Int64("worker_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	ids, err := a.scan()
	if err != nil {
		a.logger.Warn("rescan failed", slog.String("error", err.Error()))
		return nil, 0, false
	}
	return a.claimAny(ids)
}

func (a *Allocator) claimIncremented(ctx context.Context) (*claim.Claim, int64, bool) {
	id, err := a.coord.Inc(ctx, a.IPU())
	if err != nil {
		a.logger.Warn("coordinator inc failed", slog.String("error", err.Error()))
		return nil, 0, false
	}
	if id < 0 || id > a.MaxWorkerID() {
		a.logger.Warn("coordinator returned an id outside the namespace",
			slog.Int64("worker_id", id),
			slog.Int64("max_worker_id", a.MaxWorkerID()),
		)
		return nil, 0, false
	}
	c, ok := a.tryClaim(id)
	return c, id, ok
}

// startSync reports local ids to the coordinator without blocking
// Initialize. Release cancels and waits for it.
func (a *Allocator) startSync(ctx context.Context, local []int64) {
	syncCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	ipu := a.IPU()
	ids := append([]int64(nil), local...)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()

		ctx, stop := context.WithTimeout(syncCtx, a.syncTimeout)
		defer stop()

		known, err := a.coord.Sync(ctx, ipu, ids)
		if err != nil {
			a.logger.Warn("background coordinator sync failed", slog.String("error", err.Error()))
			return
		}
		a.logger.Debug("background coordinator sync done",
			slog.Int("local", len(ids)),
			slog.Int("known", len(known)),
		)
	}()
}

// permutation returns every id in random order. If the entropy source
// fails the remaining ids keep ascending order.
func (a *Allocator) permutation() []int64 {
	n := a.MaxWorkerID() + 1
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i)
	}
	for i := n - 1; i > 0; i-- {
		j, err := rand.Int(a.random, big.NewInt(i+1))
		if err != nil {
			a.logger.Warn("entropy source failed", slog.String("error", err.Error()))
			break
		}
		ids[i], ids[j.Int64()] = ids[j.Int64()], ids[i]
	}
	return ids
}

// touch creates path without locking it.
func touch(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644) // #nosec G304 - path is built by the allocator
	if err != nil {
		return err
	}
	return f.Close()
}
