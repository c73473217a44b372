// Package model defines shared data structures for the aggregator service.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies an external listing site.
type Source string

const (
	SourceLinkedIn Source = "linkedin"
	SourceNaukri   Source = "naukri"
)

// AllSources lists every source the service knows how to scrape.
var AllSources = []Source{SourceLinkedIn, SourceNaukri}

// ParseSource validates a raw site identifier (case-insensitive).
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceLinkedIn:
		return SourceLinkedIn, nil
	case SourceNaukri:
		return SourceNaukri, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// JobRecord is a normalised posting discovered during a scrape run.
// Rows are immutable once stored; a re-discovered posting is skipped,
// never overwritten.
type JobRecord struct {
	Title    string     `json:"title"`
	Company  string     `json:"company"`
	Location string     `json:"location"`
	URL      string     `json:"url"`
	Source   Source     `json:"source"`
	PostedAt *time.Time `json:"postedAt"`
	DaysAgo  *int       `json:"daysAgo"` // informational only, derived from PostedAt
}

// Fingerprint returns the dedup key for the record: (source, url) when a
// canonical URL is known, otherwise (source, company, title, postedAt).
func (r JobRecord) Fingerprint() string {
	if r.URL != "" {
		return string(r.Source) + "|" + r.URL
	}
	posted := ""
	if r.PostedAt != nil {
		posted = r.PostedAt.UTC().Format(time.RFC3339)
	}
	return string(r.Source) + "|" + strings.ToLower(r.Company) + "|" + strings.ToLower(r.Title) + "|" + posted
}

// ScrapeRequest describes one triggered run. It is never persisted.
type ScrapeRequest struct {
	Roles    []string `json:"roles"`
	Location string   `json:"location"`
	Sources  []Source `json:"sources"`
}

// Validate rejects empty or malformed requests before any work starts.
func (req ScrapeRequest) Validate() error {
	if len(req.Roles) == 0 {
		return fmt.Errorf("at least one role is required")
	}
	for _, r := range req.Roles {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("roles must be non-empty strings")
		}
	}
	if len(req.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	for _, s := range req.Sources {
		if _, err := ParseSource(string(s)); err != nil {
			return err
		}
	}
	return nil
}

// SourceSummary reports the outcome of one source's run.
type SourceSummary struct {
	Fetched          int    `json:"fetched"`
	Inserted         int    `json:"inserted"`
	SkippedDuplicate int    `json:"skippedDuplicate"`
	Failed           int    `json:"failed"` // roles that ended in total failure
	Error            string `json:"error,omitempty"`
}

// ScrapeSummary is the aggregate result returned to the caller.
type ScrapeSummary struct {
	Inserted int                      `json:"inserted"`
	Sources  map[Source]SourceSummary `json:"sources"`
}
