package scrape

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"jobradar/aggregator-service/internal/fetch"
	"jobradar/aggregator-service/internal/model"
)

const (
	// maxRolesPerRun caps the (role × page) explosion per source per run.
	maxRolesPerRun = 4
	// emptyPageThreshold stops pagination after this many consecutive
	// degenerate pages.
	emptyPageThreshold = 2
	// minDocumentBytes below which a response is treated as degenerate
	// (interstitial, captcha page, empty shell).
	minDocumentBytes = 200
)

// Fetcher is the request surface an adapter drives. *fetch.Client satisfies
// it; tests substitute fakes.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Site is the per-source configuration: everything that differs between
// listing sites. The pagination, retry and filtering behaviour is shared.
type Site struct {
	Source   model.Source
	Rules    Rules
	PageSize int
	MaxPages int
	// BuildTarget returns the request URL for a zero-based result page of
	// the (role, location) query.
	BuildTarget func(role, location string, page int) string
}

// Adapter runs one site's scrape for a request, driving the fetcher and
// extractor across pages and filtering against the source's watermark.
type Adapter struct {
	site         Site
	fetcher      Fetcher
	excludeTerms []string
	now          func() time.Time
}

// NewAdapter constructs an Adapter for the given site.
func NewAdapter(site Site, fetcher Fetcher, excludeTerms []string) *Adapter {
	return &Adapter{site: site, fetcher: fetcher, excludeTerms: excludeTerms, now: time.Now}
}

// RunResult is what one adapter run produced.
type RunResult struct {
	Records      []model.JobRecord
	PagesFetched int // pages that returned a usable document
	FailedRoles  int // roles that ended without a single fetched page
}

// Run scrapes every role sequentially and returns the postings newer than
// the watermark. A role's total failure is recorded and the next role
// proceeds; only context cancellation (the per-source budget) aborts the
// whole run, and then the partial result is still returned.
func (a *Adapter) Run(ctx context.Context, roles []string, location string, watermark time.Time) (RunResult, error) {
	logger := log.WithField("source", a.site.Source)

	if len(roles) > maxRolesPerRun {
		logger.Warnf("truncating %d roles to %d", len(roles), maxRolesPerRun)
		roles = roles[:maxRolesPerRun]
	}

	var result RunResult
	for _, role := range roles {
		pages, records, err := a.runRole(ctx, role, location, watermark)
		result.PagesFetched += pages
		result.Records = append(result.Records, records...)

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return result, err
		}
		if err != nil && pages == 0 {
			logger.WithField("role", role).Warnf("role failed: %v", err)
			result.FailedRoles++
		}
	}
	return result, nil
}

// runRole pages through one (role, location) query until a stop condition:
// an empty or short page, the page ceiling, two consecutive degenerate
// pages, or an abandoned fetch.
func (a *Adapter) runRole(ctx context.Context, role, location string, watermark time.Time) (int, []model.JobRecord, error) {
	logger := log.WithFields(log.Fields{"source": a.site.Source, "role": role})

	var (
		pages            int
		records          []model.JobRecord
		consecutiveEmpty int
	)

	for page := 0; page < a.site.MaxPages; page++ {
		target := a.site.BuildTarget(role, location, page)

		body, err := a.fetcher.Get(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return pages, records, ctx.Err()
			}
			if fetch.IsBlocked(err) {
				// Repeated 403/429: back off from this role entirely
				// rather than keep probing.
				logger.Warnf("blocked at page %d: %v", page, err)
				return pages, records, err
			}
			logger.Warnf("page %d abandoned: %v", page, err)
			consecutiveEmpty++
			if consecutiveEmpty >= emptyPageThreshold {
				return pages, records, err
			}
			continue
		}
		pages++

		if len(body) < minDocumentBytes {
			logger.Debugf("page %d returned a degenerate document (%d bytes)", page, len(body))
			consecutiveEmpty++
			if consecutiveEmpty >= emptyPageThreshold {
				break
			}
			continue
		}

		candidates := Extract(body, a.site.Rules, a.now())
		kept := a.keep(candidates, location, watermark)
		records = append(records, kept...)
		logger.WithFields(log.Fields{"page": page, "found": len(candidates), "kept": len(kept)}).
			Debug("page extracted")

		if len(candidates) == 0 {
			consecutiveEmpty++
			if consecutiveEmpty >= emptyPageThreshold {
				break
			}
		} else {
			consecutiveEmpty = 0
		}

		if len(candidates) < a.site.PageSize {
			break // short page: likely the last one
		}
	}

	return pages, records, nil
}

// keep converts candidates to records, dropping excluded postings and those
// at or below the watermark. Age-unknown postings are kept conservatively.
func (a *Adapter) keep(candidates []Candidate, location string, watermark time.Time) []model.JobRecord {
	now := a.now()
	var out []model.JobRecord
	for _, c := range candidates {
		if ContainsExcludedTerm(c.Title, c.Company, a.excludeTerms) {
			continue
		}
		if c.PostedAt != nil && !c.PostedAt.After(watermark) {
			continue
		}

		rec := model.JobRecord{
			Title:    c.Title,
			Company:  c.Company,
			Location: c.Location,
			URL:      c.URL,
			Source:   a.site.Source,
			PostedAt: c.PostedAt,
		}
		if rec.Location == "" {
			rec.Location = location
		}
		if c.PostedAt != nil {
			days := int(now.Sub(*c.PostedAt).Hours() / 24)
			rec.DaysAgo = &days
		}
		out = append(out, rec)
	}
	return out
}
