/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvictor/jiraiya/internal/adapters/jira"
	"github.com/nvictor/jiraiya/internal/config"
	httpapi "github.com/nvictor/jiraiya/internal/http"
	"github.com/nvictor/jiraiya/internal/jobs"
	"github.com/nvictor/jiraiya/internal/logger"
	"github.com/nvictor/jiraiya/internal/repo"
	"github.com/nvictor/jiraiya/internal/services"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db := repo.MustOpen(ctx, cfg, log)
	defer db.Close()
	repository := repo.NewRepository(db, log)
	if err := repository.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema init failed")
	}
	if err := repository.SeedDefaultOutcomes(ctx); err != nil {
		log.Error().Err(err).Msg("seed outcomes failed")
	}

	// Adapters and services
	jc := jira.NewClient(cfg, log)
	synclog := services.NewSyncLog(500)
	svc := services.New(cfg, log, repository, jc, synclog)

	// Cron
	cron := jobs.NewCron(cfg, log, func(ctx context.Context) error {
		return svc.Sync(ctx, nil)
	}, repository)
	cron.Start()
	defer cron.Stop()

	// HTTP server (Gin)
	router := httpapi.NewRouter(cfg, log, svc, synclog)
	errCh := make(chan error, 1)
	go func() { errCh <- router.Run(cfg.HTTPAddr) }()
	log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	time.Sleep(500 * time.Millisecond)
}
