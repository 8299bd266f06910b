package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Service implements the coordinator operations on top of a Repository.
// Read-modify-write cycles are serialized by the service so concurrent
// requests for the same identity never mint the same id.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	version atomic.Uint64
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new Service.
func NewService(repo Repository, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Version increases every time the roster changes.
func (s *Service) Version() uint64 {
	return s.version.Load()
}

// Inc mints a candidate worker id for ipu.
func (s *Service) Inc(ctx context.Context, ipu string) (int64, error) {
	if ipu == "" {
		return 0, ErrIdentityRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.load(ctx, ipu)
	if err != nil {
		return 0, err
	}

	id := entry.Mint(s.now().UTC())
	if err := s.repo.Save(ctx, entry); err != nil {
		return 0, fmt.Errorf("roster: save %s: %w", ipu, err)
	}
	s.version.Add(1)

	s.logger.Info("worker id minted",
		slog.String("ipu", ipu),
		slog.Int64("worker_id", id),
	)
	return id, nil
}

// Sync merges the ids reported for ipu and returns every id known for it,
// sorted ascending.
func (s *Service) Sync(ctx context.Context, ipu string, ids []int64) ([]int64, error) {
	if ipu == "" {
		return nil, ErrIdentityRequired
	}
	for _, id := range ids {
		if id < 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidWorkerID, id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.load(ctx, ipu)
	if err != nil {
		return nil, err
	}

	if entry.Merge(ids, s.now().UTC()) {
		if err := s.repo.Save(ctx, entry); err != nil {
			return nil, fmt.Errorf("roster: save %s: %w", ipu, err)
		}
		s.version.Add(1)
		s.logger.Info("roster synced",
			slog.String("ipu", ipu),
			slog.Int("reported", len(ids)),
			slog.Int("known", len(entry.IDs)),
		)
	}

	return slices.Clone(entry.IDs), nil
}

// Entries returns a copy of every entry.
func (s *Service) Entries(ctx context.Context) ([]*Entry, error) {
	return s.repo.List(ctx)
}

// Restore replaces the state of the listed identities, used when loading a
// snapshot at startup. It does not count as a change.
func (s *Service) Restore(ctx context.Context, entries []*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if e == nil || e.IPU == "" {
			continue
		}
		c := e.Clone()
		c.normalize()
		if err := s.repo.Save(ctx, c); err != nil {
			return fmt.Errorf("roster: restore %s: %w", e.IPU, err)
		}
	}
	return nil
}

func (s *Service) load(ctx context.Context, ipu string) (*Entry, error) {
	entry, err := s.repo.FindByIPU(ctx, ipu)
	if errors.Is(err, ErrEntryNotFound) {
		return NewEntry(ipu), nil
	}
	if err != nil {
		return nil, fmt.Errorf("roster: find %s: %w", ipu, err)
	}
	return entry, nil
}
