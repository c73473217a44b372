// Package scheduler wires up the cron job that periodically triggers a
// scrape of the configured default request.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"jobradar/aggregator-service/internal/model"
	"jobradar/aggregator-service/internal/orchestrator"
)

// Scheduler wraps robfig/cron and manages the periodic scrape loop.
type Scheduler struct {
	cron    *cron.Cron
	orch    *orchestrator.Orchestrator
	request model.ScrapeRequest
	spec    string // cron spec, e.g. "@every 6h"
}

// New creates a Scheduler that fires the given request every intervalHours
// hours.
func New(orch *orchestrator.Orchestrator, request model.ScrapeRequest, intervalHours int) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cron.DefaultLogger)),
		orch:    orch,
		request: request,
		spec:    fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the job and starts the scheduler. Also runs one scrape
// immediately so the feed is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runScrape(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Infof("cron started, spec %s", s.spec)

	// Run immediately on startup (non-blocking)
	go s.runScrape(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info("cron stopped")
}

func (s *Scheduler) runScrape(ctx context.Context) {
	log.Info("scheduled scrape cycle started")
	summary, err := s.orch.Run(ctx, s.request)
	if err != nil {
		log.Errorf("scheduled scrape failed: %v", err)
		return
	}
	log.WithField("inserted", summary.Inserted).Info("scheduled scrape cycle complete")
}
