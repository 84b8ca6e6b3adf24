// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianExplorer/pkg/logging"
	"github.com/AleutianAI/AleutianExplorer/services/explorer/experiments"
	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
	"github.com/AleutianAI/AleutianExplorer/services/explorer/proposer"
	"github.com/AleutianAI/AleutianExplorer/services/explorer/simclient"
	"github.com/AleutianAI/AleutianExplorer/services/explorer/storage/badger"
	"github.com/AleutianAI/AleutianExplorer/services/explorer/storage/memory"
	"github.com/AleutianAI/AleutianExplorer/services/explorer/storage/redis"
)

// app holds the wired dependencies of one command invocation.
type app struct {
	cfg      explore.ServiceConfig
	logger   *logging.Logger
	store    explore.ExplorationStore
	catalog  *experiments.Static
	explorer *explore.Orchestrator

	closers []func() error
}

// loadConfig reads the config file and environment, then applies --log-level.
func loadConfig() (explore.ServiceConfig, error) {
	cfg, err := explore.LoadServiceConfig(configPath)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		if _, err := logging.ParseLevel(logLevel); err != nil {
			return cfg, err
		}
		cfg.Observability.LogLevel = logLevel
	}
	return cfg, nil
}

func newLogger(obs explore.ObservabilityConfig) *logging.Logger {
	level, err := logging.ParseLevel(obs.LogLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	format := logging.FormatAuto
	if obs.LogJSON {
		format = logging.FormatJSON
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  obs.LogDir,
		Service: obs.ServiceName,
		Format:  format,
	})
}

// newApp wires the store and logger. With engine set it also loads the
// experiment catalog and connects the proposer and simulator; without it
// the orchestrator is only good for reads.
func newApp(ctx context.Context, engine bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: newLogger(cfg.Observability)}
	a.closers = append(a.closers, a.logger.Close)
	slog.SetDefault(a.logger.Slog())

	store, closeStore, err := openStore(ctx, cfg.Storage, a.logger.Slog())
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.store = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	var (
		provider  explore.ActionProposalProvider
		simulator explore.OutcomeSimulator
		source    explore.ExperimentSource
	)
	if engine {
		a.catalog, err = experiments.LoadFile(cfg.Experiments.CatalogPath)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("load experiments: %w", err)
		}
		source = a.catalog

		provider, err = proposer.New(cfg.Proposal, proposer.WithLogger(a.logger.Slog()))
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("create proposer: %w", err)
		}
		if cfg.Simulation.BaseURL == "" {
			_ = a.Close()
			return nil, errors.New("simulation.base_url is required")
		}
		simulator = simclient.New(cfg.Simulation.BaseURL, simclient.WithLogger(a.logger.Slog()))
	}

	a.explorer = explore.NewOrchestrator(store, source, provider, simulator, cfg,
		explore.WithLogger(a.logger.Slog()),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore connects the configured exploration store backend.
//
// Outputs:
//   - explore.ExplorationStore: The store.
//   - func() error: Releases the store, or nil if there is nothing to release.
//   - error: Non-nil if the backend is unknown or unreachable.
func openStore(ctx context.Context, cfg explore.StorageConfig, logger *slog.Logger) (explore.ExplorationStore, func() error, error) {
	switch cfg.Backend {
	case "", "memory":
		return memory.NewStore(), nil, nil

	case "badger":
		bcfg := badger.DefaultConfig(cfg.BadgerPath)
		bcfg.Logger = logger
		store, err := badger.Open(bcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store: %w", err)
		}
		return store, store.Close, nil

	case "redis":
		var opts []redis.Option
		if cfg.RedisKeyPrefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.RedisKeyPrefix))
		}
		store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, opts...)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown storage backend %q", explore.ErrInvalidConfig, cfg.Backend)
	}
}
