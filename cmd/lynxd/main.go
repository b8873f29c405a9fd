// go-lynx
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-lynx.
//
// go-lynx is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-lynx is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-lynx; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Command lynxd runs the NFC lock: it polls the reader, drives the lock and
// the status LED, and keeps credentials and events in sync with the remote
// service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/access"
	"github.com/ZaparooProject/go-lynx/config"
	"github.com/ZaparooProject/go-lynx/credential"
	"github.com/ZaparooProject/go-lynx/credential/sqlite"
	"github.com/ZaparooProject/go-lynx/indicator"
	"github.com/ZaparooProject/go-lynx/internal/logging"
	"github.com/ZaparooProject/go-lynx/syncer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type flags struct {
	configPath *string
	debug      *bool
	simulate   *bool
}

func parseFlags() *flags {
	f := &flags{
		configPath: flag.String("config", "/etc/lynx/lynx.toml", "Path to the configuration file"),
		debug:      flag.Bool("debug", false, "Enable debug logging"),
		simulate:   flag.Bool("simulate", false, "Run without hardware; tag UIDs are read from stdin"),
	}
	flag.Parse()
	return f
}

func loadConfig(f *flags) (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(*f.configPath); errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		cfg.ApplyEnvOverrides()
	} else {
		loaded, err := config.Load(*f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *f.simulate {
		cfg.Device.Simulate = true
	}
	if cfg.Device.Simulate {
		cfg.Actuator.Kind = config.ActuatorSimulated
	}
	if *f.debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	f := parseFlags()

	cfg, err := loadConfig(f)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "lynxd: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "lynxd: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("lynxd stopped", zap.Error(err))
		stop()
		os.Exit(1)
	}
	logger.Info("lynxd stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger = logger.With(zap.String("device_id", cfg.Device.ID))

	if cfg.Device.NetworkFile != "" {
		if err := provisionNetwork(ctx, cfg.Device.NetworkFile, logProvisioner{logger: logger}); err != nil {
			logger.Warn("network provisioning failed", zap.Error(err))
		}
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	hw, err := openHardware(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer hw.Close()

	ind := indicator.New(hw.strip,
		indicator.WithPixels(cfg.Indicator.Pixels),
		indicator.WithFlash(cfg.Indicator.Flash.Duration),
		indicator.WithLogger(logger.Named("indicator")),
	)
	defer func() { _ = ind.Close() }()

	queue := syncer.NewQueue(cfg.Sync.QueueCapacity)

	ctrl := access.NewController(hw.reader, store, hw.actuator, ind, queue,
		access.WithConfig(access.Config{
			PollInterval:    cfg.Reader.PollInterval.Duration,
			Hold:            cfg.Access.Hold.Duration,
			ActuatorTimeout: cfg.Actuator.Timeout.Duration,
		}),
		access.WithLogger(logger.Named("access")),
		access.WithVerifier(hw.verifier),
		access.OnStateChange(func(from, to lynx.LockState) {
			logger.Info("lock state", zap.Stringer("from", from), zap.Stringer("to", to))
		}),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(ctx) })

	if cfg.Store.CredentialsFile != "" && cfg.Store.Watch {
		watcher, err := credential.NewWatcher(cfg.Store.CredentialsFile, store,
			credential.WithWatcherLogger(logger.Named("credentials")))
		if err != nil {
			logger.Warn("credentials file watch disabled", zap.Error(err))
		} else {
			g.Go(func() error { return watcher.Run(ctx) })
		}
	}

	if cfg.Sync.Enabled {
		mgr, err := newSyncManager(cfg, queue, store, ind, logger.Named("sync"))
		if err != nil {
			return err
		}
		g.Go(func() error { return mgr.Run(ctx) })
	}

	if hw.simulated != nil {
		g.Go(func() error { return readTaps(ctx, os.Stdin, hw.simulated, ctrl, logger) })
	}

	logger.Info("lynxd started",
		zap.String("reader", cfg.Reader.Transport),
		zap.String("actuator", cfg.Actuator.Kind),
		zap.Int("credentials", store.Len()),
		zap.Bool("sync", cfg.Sync.Enabled))

	return g.Wait()
}

// openStore opens the persisted store and applies the local credentials
// file on top of it. The returned func closes the database.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*credential.Store, func(), error) {
	opts := []credential.Option{credential.WithLogger(logger.Named("store"))}
	closeFn := func() {}

	if cfg.Store.Database != "" {
		mirror, err := sqlite.Open(ctx, cfg.Store.Database)
		if err != nil {
			// Without a mirror the lock still works from memory.
			logger.Error("credential database unavailable", zap.Error(err))
		} else {
			opts = append(opts, credential.WithPersister(mirror))
			closeFn = func() { _ = mirror.Close() }
		}
	}

	store := credential.Open(ctx, opts...)

	if cfg.Store.CredentialsFile != "" {
		u, err := credential.LoadFile(cfg.Store.CredentialsFile)
		if err == nil {
			err = store.ApplyUpdate(ctx, u)
		}
		if err != nil {
			logger.Warn("credentials file not applied", zap.Error(err))
		}
	}
	return store, closeFn, nil
}

func newSyncManager(
	cfg *config.Config,
	queue *syncer.Queue,
	store *credential.Store,
	ind *indicator.Indicator,
	logger *zap.Logger,
) (*syncer.Manager, error) {
	client, err := syncer.NewHTTPClient(cfg.Sync.URL, cfg.Device.ID,
		syncer.WithRequestTimeout(cfg.Sync.RequestTimeout.Duration))
	if err != nil {
		return nil, err
	}
	return syncer.NewManager(client, queue, store,
		syncer.WithConfig(syncer.Config{
			Interval:       cfg.Sync.Interval.Duration,
			BatchSize:      cfg.Sync.BatchSize,
			InitialBackoff: cfg.Sync.InitialBackoff.Duration,
			MaxBackoff:     cfg.Sync.MaxBackoff.Duration,
		}),
		syncer.WithIndicator(ind),
		syncer.WithLogger(logger),
	), nil
}
