package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/idworker/internal/storage"
)

// snapshotFormat is bumped on incompatible changes to Snapshot.
const snapshotFormat = 1

// ErrUnsupportedSnapshot is returned for snapshots written in another format.
var ErrUnsupportedSnapshot = errors.New("roster: unsupported snapshot format")

// Snapshot is the persisted form of the roster.
type Snapshot struct {
	Format  int       `json:"format"`
	SavedAt time.Time `json:"saved_at"`
	Entries []*Entry  `json:"entries"`
}

// Snapshotter persists the roster of a Service through a storage.Storage.
type Snapshotter struct {
	service *Service
	store   storage.Storage
	key     string
	logger  *slog.Logger

	// flushed is the service version of the last successful flush.
	// Only Load, Flush and Run touch it, from one goroutine at a time.
	flushed uint64
}

// NewSnapshotter creates a Snapshotter writing to key in store.
func NewSnapshotter(service *Service, store storage.Storage, key string, logger *slog.Logger) *Snapshotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshotter{
		service: service,
		store:   store,
		key:     key,
		logger:  logger,
	}
}

// Load restores the roster from the stored snapshot. A missing snapshot is
// not an error.
func (s *Snapshotter) Load(ctx context.Context) error {
	rc, err := s.store.Load(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Info("no roster snapshot found, starting empty", slog.String("key", s.key))
		return nil
	}
	if err != nil {
		return fmt.Errorf("roster: load snapshot: %w", err)
	}
	defer func() { _ = rc.Close() }()

	var snap Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("roster: decode snapshot: %w", err)
	}
	if snap.Format != snapshotFormat {
		return fmt.Errorf("%w: %d", ErrUnsupportedSnapshot, snap.Format)
	}

	if err := s.service.Restore(ctx, snap.Entries); err != nil {
		return err
	}
	s.flushed = s.service.Version()

	s.logger.Info("roster snapshot loaded",
		slog.String("key", s.key),
		slog.Int("entries", len(snap.Entries)),
		slog.Time("saved_at", snap.SavedAt),
	)
	return nil
}

// Flush writes a snapshot if the roster changed since the last flush.
func (s *Snapshotter) Flush(ctx context.Context) error {
	version := s.service.Version()
	if version == s.flushed {
		return nil
	}

	entries, err := s.service.Entries(ctx)
	if err != nil {
		return fmt.Errorf("roster: list entries: %w", err)
	}

	data, err := json.Marshal(Snapshot{
		Format:  snapshotFormat,
		SavedAt: time.Now().UTC(),
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("roster: encode snapshot: %w", err)
	}

	if err := s.store.Save(ctx, s.key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("roster: save snapshot: %w", err)
	}
	s.flushed = version

	s.logger.Debug("roster snapshot saved",
		slog.String("key", s.key),
		slog.Int("entries", len(entries)),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// Run flushes every interval until ctx is done. Flush errors are logged and
// retried on the next tick. The caller should Flush once more after Run
// returns.
func (s *Snapshotter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.logger.Error("roster snapshot failed", slog.String("error", err.Error()))
			}
		}
	}
}
