package identity

import (
	"log/slog"
	"sync"

	"github.com/maauso/idworker/internal/config"
	"github.com/maauso/idworker/internal/coordinator"
	"github.com/maauso/idworker/internal/snowflake"
	"github.com/maauso/idworker/internal/workerid"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide Registry. Its default strategy is an
// Allocator configured from the environment.
func Default() *Registry {
	defaultOnce.Do(func() {
		cfg, cfgErr := config.Load()

		opts := []Option{}
		if cfgErr == nil {
			opts = append(opts, WithWideConfig(WideConfig(cfg.WorkerIDBits)))
		}

		defaultRegistry = NewRegistry(func() (workerid.Strategy, error) {
			if cfgErr != nil {
				return nil, cfgErr
			}
			a, err := NewAllocator(cfg, slog.Default())
			if err != nil {
				return nil, err
			}
			return a, nil
		}, opts...)
	})
	return defaultRegistry
}

// WideConfig returns DefaultConfig with the given worker id width.
func WideConfig(workerIDBits uint) snowflake.Config {
	cfg := snowflake.DefaultConfig
	cfg.WorkerIDBits = workerIDBits
	return cfg
}

// NewAllocator builds the lock-file strategy described by cfg.
func NewAllocator(cfg *config.Config, logger *slog.Logger) (*workerid.Allocator, error) {
	opts := []workerid.Option{
		workerid.WithDir(cfg.Dir),
		workerid.WithHostAddress(cfg.HostAddress),
		workerid.WithPrincipal(cfg.Principal),
		workerid.WithWorkerIDBits(cfg.WorkerIDBits),
		workerid.WithLogger(logger),
	}
	if cfg.CoordinatorEnabled() {
		client := coordinator.NewClient(cfg.CoordinatorURL,
			coordinator.WithTimeout(cfg.CoordinatorTimeout),
			coordinator.WithMaxRetries(cfg.CoordinatorMaxRetries),
		)
		opts = append(opts, workerid.WithCoordinator(client))
	}
	return workerid.New(opts...)
}
