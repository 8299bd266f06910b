// Package main provides the entry point for the idgen command line tool.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maauso/idworker/internal/bootstrap"
	"github.com/maauso/idworker/internal/cli"
	"github.com/maauso/idworker/internal/config"
	"github.com/maauso/idworker/internal/identity"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var reg *identity.Registry
	defer func() {
		if reg != nil {
			if err := reg.Close(); err != nil {
				slog.Warn("failed to release worker id", slog.String("error", err.Error()))
			}
		}
	}()

	root := cli.NewRoot(func() (*identity.Registry, error) {
		if reg != nil {
			return reg, nil
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		// stdout carries the ids.
		logger := cfg.NewLoggerTo(os.Stderr)
		slog.SetDefault(logger)
		reg = bootstrap.NewRegistry(cfg, logger)
		return reg, nil
	})

	return root.ExecuteContext(ctx)
}
