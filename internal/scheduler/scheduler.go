// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package scheduler runs the periodic background jobs: publishing
// scheduled posts and pruning old traffic data.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Publisher publishes scheduled posts that are due. *store.BlogRepo
// implements it.
type Publisher interface {
	PublishDue(ctx context.Context, now time.Time) (int, error)
}

// Pruner deletes traffic data older than a cutoff. *store.PageViewStore
// implements it.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Config tunes the jobs.
type Config struct {
	PublishSpec string        // cron spec of the publish job
	PruneSpec   string        // cron spec of the prune job
	Retention   time.Duration // page views older than this are pruned
	JobTimeout  time.Duration

	// OnPublished, when set, runs after the publish job published at
	// least one post.
	OnPublished func(ctx context.Context)
}

// DefaultConfig publishes every minute and prunes nightly, keeping 180 days.
var DefaultConfig = Config{
	PublishSpec: "* * * * *",
	PruneSpec:   "30 3 * * *",
	Retention:   180 * 24 * time.Hour,
	JobTimeout:  time.Minute,
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron      *cron.Cron
	publisher Publisher
	pruner    Pruner
	cfg       Config
	now       func() time.Time
}

// New registers the jobs. Call Start to run them.
func New(publisher Publisher, pruner Pruner, cfg Config) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		publisher: publisher,
		pruner:    pruner,
		cfg:       cfg,
		now:       time.Now,
	}

	if _, err := s.cron.AddFunc(cfg.PublishSpec, s.publishDue); err != nil {
		return nil, err
	}
	if pruner != nil {
		if _, err := s.cron.AddFunc(cfg.PruneSpec, s.pruneTraffic); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start runs the jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops scheduling new runs and waits for running jobs to finish or
// ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		slog.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) publishDue() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	n, err := s.publisher.PublishDue(ctx, s.now())
	if err != nil {
		slog.Error("publish scheduled posts failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("scheduled posts published", "count", n)
		if s.cfg.OnPublished != nil {
			s.cfg.OnPublished(ctx)
		}
	}
}

func (s *Scheduler) pruneTraffic() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	n, err := s.pruner.Prune(ctx, s.now().Add(-s.cfg.Retention))
	if err != nil {
		slog.Error("prune page views failed", "error", err)
		return
	}
	slog.Info("page views pruned", "count", n)
}
