// Package identity binds a worker id strategy to a pair of id generators and
// exposes them behind one small facade.
//
// A Registry starts unbound. The first call to Next, NextInt or WorkerID
// installs the default strategy; Configure replaces the binding explicitly.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/maauso/idworker/internal/snowflake"
	"github.com/maauso/idworker/internal/workerid"
)

// ErrNilStrategy is returned by Configure when given a nil strategy.
var ErrNilStrategy = errors.New("identity: strategy is nil")

// StrategyFactory builds the strategy installed on first use.
type StrategyFactory func() (workerid.Strategy, error)

// binding is the immutable state published by Configure.
type binding struct {
	strategy workerid.Strategy
	workerID int64
	wide     *snowflake.Generator
	narrow   *snowflake.Generator
}

// Registry holds the current strategy and the generators built from it.
// Readers never block on Configure once a binding is published.
type Registry struct {
	newDefault StrategyFactory
	wideCfg    snowflake.Config
	narrowCfg  snowflake.Config
	clock      func() int64
	logger     *slog.Logger

	mu      sync.Mutex
	current atomic.Pointer[binding]
	// retired keeps replaced bindings by worker id, guarded by mu.
	retired map[int64]*binding
}

// Option configures a Registry.
type Option func(*Registry)

// WithWideConfig sets the layout of the 64-bit generator.
func WithWideConfig(cfg snowflake.Config) Option {
	return func(r *Registry) {
		r.wideCfg = cfg
	}
}

// WithNarrowConfig sets the layout of the 32-bit generator.
func WithNarrowConfig(cfg snowflake.Config) Option {
	return func(r *Registry) {
		r.narrowCfg = cfg
	}
}

// WithClock replaces the wall clock of both generators.
func WithClock(now func() int64) Option {
	return func(r *Registry) {
		r.clock = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an unbound Registry. newDefault is called at most once
// per unbound period, on first use.
func NewRegistry(newDefault StrategyFactory, opts ...Option) *Registry {
	r := &Registry{
		newDefault: newDefault,
		wideCfg:    snowflake.DefaultConfig,
		narrowCfg:  snowflake.NarrowConfig,
		retired:    make(map[int64]*binding),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Configure binds s. Configuring the strategy that is already bound is a
// no-op. Otherwise the current strategy is released, s is initialized and
// fresh generators are published. If s fails to initialize the Registry is
// left unbound and the next use installs the default strategy.
func (r *Registry) Configure(ctx context.Context, s workerid.Strategy) error {
	if s == nil {
		return ErrNilStrategy
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.bindLocked(ctx, s)
}

// Next returns the next 64-bit id.
func (r *Registry) Next(ctx context.Context) (int64, error) {
	b, err := r.bound(ctx)
	if err != nil {
		return 0, err
	}
	return b.wide.NextID()
}

// NextInt returns the next non-negative 32-bit id.
func (r *Registry) NextInt(ctx context.Context) (int32, error) {
	b, err := r.bound(ctx)
	if err != nil {
		return 0, err
	}
	return b.narrow.NextInt()
}

// WorkerID returns the worker id of the bound strategy.
func (r *Registry) WorkerID(ctx context.Context) (int64, error) {
	b, err := r.bound(ctx)
	if err != nil {
		return 0, err
	}
	return b.workerID, nil
}

// Decode splits an id produced by Next into its parts.
func (r *Registry) Decode(id int64) snowflake.Parts {
	return snowflake.Decode(id, r.wideCfg, snowflake.Epoch)
}

// Close releases the bound strategy and leaves the Registry unbound.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.current.Swap(nil)
	if b == nil {
		return nil
	}
	r.retireLocked(b)
	if err := b.strategy.Release(); err != nil {
		return fmt.Errorf("identity: release strategy: %w", err)
	}
	return nil
}

// bound returns the current binding, installing the default strategy when
// there is none.
func (r *Registry) bound(ctx context.Context) (*binding, error) {
	if b := r.current.Load(); b != nil {
		return b, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b := r.current.Load(); b != nil {
		return b, nil
	}
	if r.newDefault == nil {
		return nil, ErrNilStrategy
	}

	s, err := r.newDefault()
	if err != nil {
		return nil, fmt.Errorf("identity: create default strategy: %w", err)
	}
	if err := r.bindLocked(ctx, s); err != nil {
		return nil, err
	}
	return r.current.Load(), nil
}

func (r *Registry) bindLocked(ctx context.Context, s workerid.Strategy) error {
	old := r.current.Load()
	if old != nil && old.strategy == s {
		return nil
	}

	if old != nil {
		r.current.Store(nil)
		r.retireLocked(old)
		if err := old.strategy.Release(); err != nil {
			r.logger.Warn("releasing previous strategy failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Initialize(ctx); err != nil {
		return fmt.Errorf("identity: initialize strategy: %w", err)
	}

	id := s.WorkerID()
	b := &binding{strategy: s, workerID: id}
	if prev, ok := r.retired[id]; ok {
		// A worker id seen before keeps its generator state so no id repeats.
		b.wide, b.narrow = prev.wide, prev.narrow
	} else {
		b.wide = snowflake.New(id, r.generatorOptions(r.wideCfg)...)
		b.narrow = snowflake.New(id, r.generatorOptions(r.narrowCfg)...)
	}
	r.current.Store(b)

	r.logger.Info("identity configured",
		slog.Int64("worker_id", id),
		slog.Int64("wide_worker_id", b.wide.WorkerID()),
		slog.Int64("narrow_worker_id", b.narrow.WorkerID()),
	)
	return nil
}

func (r *Registry) retireLocked(b *binding) {
	r.retired[b.workerID] = b
}

func (r *Registry) generatorOptions(cfg snowflake.Config) []snowflake.Option {
	opts := []snowflake.Option{
		snowflake.WithConfig(cfg),
		snowflake.WithLogger(r.logger),
	}
	if r.clock != nil {
		opts = append(opts, snowflake.WithClock(r.clock))
	}
	return opts
}
