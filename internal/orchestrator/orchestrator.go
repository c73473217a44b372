// Package orchestrator fans a scrape request out to one adapter per source,
// pushes the results through the dedup/upsert engine, and advances each
// source's watermark once its run reaches a terminal state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"jobradar/aggregator-service/internal/fetch"
	"jobradar/aggregator-service/internal/model"
	"jobradar/aggregator-service/internal/scrape"
	"jobradar/aggregator-service/internal/store"
)

// ErrValidation marks a malformed request; the run was never attempted.
var ErrValidation = errors.New("invalid scrape request")

// JobStore is the persistence surface the orchestrator writes records to.
type JobStore interface {
	InsertIfAbsent(ctx context.Context, rec model.JobRecord) (store.UpsertOutcome, error)
}

// WatermarkStore tracks per-source last-run timestamps.
type WatermarkStore interface {
	Get(ctx context.Context, source model.Source) (time.Time, bool, error)
	Set(ctx context.Context, source model.Source, ts time.Time) error
}

// Runner is one source adapter's run surface.
type Runner interface {
	Run(ctx context.Context, roles []string, location string, watermark time.Time) (scrape.RunResult, error)
}

// RunnerFactory builds the adapter for a source, or reports that the source
// is unknown. Each run gets a fresh adapter so politeness state never leaks
// across runs.
type RunnerFactory func(source model.Source) (Runner, bool)

// Options tunes an Orchestrator.
type Options struct {
	SourceBudget    time.Duration // wall-clock cutoff per source, default 90s
	BootstrapWindow time.Duration // first-run lookback, default 12h
	ExcludeTerms    []string
	NewRunner       RunnerFactory // tests substitute fakes
	Now             func() time.Time
}

// Orchestrator coordinates one scrape run end to end.
type Orchestrator struct {
	jobs      JobStore
	marks     WatermarkStore
	budget    time.Duration
	bootstrap time.Duration
	newRunner RunnerFactory
	now       func() time.Time
}

// New constructs an Orchestrator over the given stores.
func New(jobs JobStore, marks WatermarkStore, opts Options) *Orchestrator {
	o := &Orchestrator{
		jobs:      jobs,
		marks:     marks,
		budget:    opts.SourceBudget,
		bootstrap: opts.BootstrapWindow,
		newRunner: opts.NewRunner,
		now:       opts.Now,
	}
	if o.budget == 0 {
		o.budget = 90 * time.Second
	}
	if o.bootstrap == 0 {
		o.bootstrap = 12 * time.Hour
	}
	if o.newRunner == nil {
		terms := opts.ExcludeTerms
		o.newRunner = func(source model.Source) (Runner, bool) {
			site, ok := scrape.SiteFor(source)
			if !ok {
				return nil, false
			}
			return scrape.NewAdapter(site, fetch.New(fetch.Options{}), terms), true
		}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Run executes the request: one concurrent task per source, each filtered by
// its own watermark and bounded by the per-source budget. Nothing below the
// request level is fatal; the returned summary reports per-source outcomes.
func (o *Orchestrator) Run(ctx context.Context, req model.ScrapeRequest) (model.ScrapeSummary, error) {
	if err := req.Validate(); err != nil {
		return model.ScrapeSummary{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	sources := dedupeSources(req.Sources)
	log.WithFields(log.Fields{"roles": req.Roles, "location": req.Location, "sources": sources}).
		Info("scrape run started")

	summary := model.ScrapeSummary{Sources: make(map[model.Source]model.SourceSummary, len(sources))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, source := range sources {
		wg.Add(1)
		go func(source model.Source) {
			defer wg.Done()
			s := o.runSource(ctx, source, req)
			mu.Lock()
			summary.Sources[source] = s
			summary.Inserted += s.Inserted
			mu.Unlock()
		}(source)
	}
	wg.Wait()

	log.WithField("inserted", summary.Inserted).Info("scrape run complete")
	return summary, nil
}

// runSource drives one source from watermark lookup to watermark advance.
func (o *Orchestrator) runSource(ctx context.Context, source model.Source, req model.ScrapeRequest) model.SourceSummary {
	logger := log.WithField("source", source)
	runStart := o.now()

	runner, ok := o.newRunner(source)
	if !ok {
		return model.SourceSummary{Error: fmt.Sprintf("no adapter for source %q", source)}
	}

	watermark, found, err := o.marks.Get(ctx, source)
	if err != nil {
		logger.Errorf("watermark lookup failed: %v", err)
		return model.SourceSummary{Error: err.Error()}
	}
	if !found {
		watermark = runStart.Add(-o.bootstrap)
		logger.Infof("no watermark, bootstrapping from %s", watermark.Format(time.RFC3339))
	}

	srcCtx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	res, runErr := runner.Run(srcCtx, req.Roles, req.Location, watermark)
	budgetExceeded := runErr != nil && srcCtx.Err() != nil
	if budgetExceeded {
		logger.Warnf("source budget exceeded after %d pages, committing partial results", res.PagesFetched)
	}

	s := model.SourceSummary{
		Fetched: len(res.Records),
		Failed:  res.FailedRoles,
	}

	// Upserts use the parent context: the per-source budget bounds the
	// scraping, not the committing of what was already scraped.
	for _, rec := range res.Records {
		outcome, err := o.jobs.InsertIfAbsent(ctx, rec)
		if err != nil {
			logger.Errorf("upsert failed for %s: %v", rec.Fingerprint(), err)
			continue
		}
		switch outcome {
		case store.Inserted:
			s.Inserted++
		case store.SkippedDuplicate:
			s.SkippedDuplicate++
		}
	}

	// The watermark advances only after a terminal run with at least one
	// fetched page. A budget-exceeded or zero-page run leaves it alone so
	// the next run re-covers the window.
	switch {
	case budgetExceeded:
		s.Error = "source budget exceeded"
	case res.PagesFetched == 0:
		logger.Warn("no pages fetched, watermark withheld")
		if runErr != nil {
			s.Error = runErr.Error()
		}
	default:
		if err := o.marks.Set(ctx, source, runStart); err != nil {
			logger.Errorf("watermark advance failed: %v", err)
			s.Error = err.Error()
		}
	}

	logger.WithFields(log.Fields{
		"fetched": s.Fetched, "inserted": s.Inserted,
		"duplicates": s.SkippedDuplicate, "failedRoles": s.Failed,
	}).Info("source run done")
	return s
}

func dedupeSources(in []model.Source) []model.Source {
	seen := make(map[model.Source]struct{}, len(in))
	var out []model.Source
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
