// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

// Command server runs the affinity recommendation service.
//
// The service ingests engagement signals (page views, click-throughs
// between project pages), maintains pairwise affinity strengths in DuckDB,
// and serves related-project selections over HTTP.
//
// Configuration comes from built-in defaults, an optional YAML file, and
// AFFINITY_* environment variables. See internal/config for the full
// surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/campuskit/affinity/internal/affinity"
	"github.com/campuskit/affinity/internal/api"
	"github.com/campuskit/affinity/internal/config"
	"github.com/campuskit/affinity/internal/database"
	"github.com/campuskit/affinity/internal/logging"
	"github.com/campuskit/affinity/internal/signals"
	"github.com/campuskit/affinity/internal/supervisor"
	"github.com/campuskit/affinity/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("signals_transport", cfg.Signals.Transport).
		Bool("admin_enabled", cfg.Admin.Token != "").
		Msg("Starting affinity service")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	ingestor, err := affinity.NewIngestor(db, db, affinity.IngestorConfig{
		ClickIncrement: cfg.Affinity.ClickIncrement,
	}, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create ingestor")
	}

	selector, err := affinity.NewSelector(db, db, affinity.SelectorConfig{
		MaxRelated:     cfg.Affinity.MaxRelated,
		FallbackBatch:  cfg.Affinity.FallbackBatch,
		BreakerTimeout: cfg.Affinity.BreakerTimeout,
	}, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create selector")
	}

	counters := affinity.NewCounters(db, db, logging.Logger())

	busLogger := signals.NewLoggerAdapter()
	bus, err := signals.NewBus(&cfg.Signals, busLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create signal bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing signal bus")
		}
	}()

	publisher := signals.NewPublisher(bus)
	consumer, err := signals.NewConsumer(bus, cfg.Signals.Consumers, ingestor, counters, busLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create signal consumer")
	}

	handler := api.NewHandler(selector, ingestor, publisher, db, db, db)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddSignalsService(services.NewConsumerService(consumer))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	if len(unstopped) > 0 {
		fmt.Fprintln(os.Stderr, "shutdown incomplete")
		return
	}

	logging.Info().Msg("Service stopped gracefully")
}
