// Package bootstrap provides dependency initialization for the idworker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/idworker/internal/config"
	"github.com/maauso/idworker/internal/identity"
	"github.com/maauso/idworker/internal/roster"
	"github.com/maauso/idworker/internal/storage"
	"github.com/maauso/idworker/internal/workerid"
)

// Dependencies holds all initialized dependencies for the coordinator server.
type Dependencies struct {
	Service     *roster.Service
	Snapshotter *roster.Snapshotter
}

// NewDependencies creates and initializes the coordinator dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize snapshot storage
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize roster
	svc := roster.NewService(roster.NewMemoryRepository(), logger)
	snap := roster.NewSnapshotter(svc, store, cfg.StateKey, logger)

	return &Dependencies{
		Service:     svc,
		Snapshotter: snap,
	}, nil
}

// NewRegistry creates an identity registry whose default strategy is the
// lock-file allocator described by cfg.
func NewRegistry(cfg *config.Config, logger *slog.Logger) *identity.Registry {
	return identity.NewRegistry(func() (workerid.Strategy, error) {
		a, err := identity.NewAllocator(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create allocator: %w", err)
		}
		return a, nil
	},
		identity.WithWideConfig(identity.WideConfig(cfg.WorkerIDBits)),
		identity.WithLogger(logger),
	)
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("state_dir", localStore.Dir()),
	)
	return localStore, nil
}
