package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/nvictor/jiraiya/internal/config"
	"github.com/nvictor/jiraiya/internal/repo"
)

type Cron struct {
	cfg  config.Config
	log  zerolog.Logger
	run  func(ctx context.Context) error
	repo *repo.Repository
	c    *cron.Cron
}

// NewCron schedules the periodic sync. run is the sync entry point;
// the advisory lock keeps concurrent replicas from syncing twice.
func NewCron(cfg config.Config, log zerolog.Logger, run func(ctx context.Context) error, r *repo.Repository) *Cron {
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, run: run, repo: r, c: c}
	if cfg.SyncCron != "" {
		_, _ = c.AddFunc(cfg.SyncCron, cr.sync)
	}
	return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) sync() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	const lockKey int64 = 811917
	ok, err := cr.repo.TryAdvisoryLock(ctx, lockKey)
	if err != nil {
		cr.log.Error().Err(err).Msg("cron: lock error")
		return
	}
	if !ok {
		cr.log.Info().Msg("cron: sync already running elsewhere")
		return
	}
	defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), lockKey) }()
	cr.log.Info().Msg("cron: scheduled sync")
	if err := cr.run(ctx); err != nil {
		cr.log.Error().Err(err).Msg("cron: sync failed")
	}
}
