// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"jobradar/aggregator-service/internal/model"
)

// Config holds all runtime configuration for the aggregator service.
type Config struct {
	Port         string
	DatabaseURL  string
	RedisURL     string
	ScrapeSecret string // gates POST /api/v1/scrape when non-empty

	// Scheduled scraping. The cron job only runs when DefaultRoles is set.
	ScrapeIntervalHours int
	DefaultRoles        []string
	DefaultLocation     string
	DefaultSources      []model.Source

	// Pipeline tunables.
	SourceBudget    time.Duration // wall-clock cutoff per source per run
	BootstrapWindow time.Duration // lookback used when a source has no watermark
	ExcludeTerms    []string      // postings matching any term are discarded
}

// Load reads environment variables (after best-effort .env loading) and
// returns a validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	interval := 6
	if s := os.Getenv("SCRAPE_INTERVAL_HOURS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("SCRAPE_INTERVAL_HOURS must be a positive integer, got %q", s)
		}
		interval = v
	}

	budget := 90 * time.Second
	if s := os.Getenv("SOURCE_BUDGET_SECONDS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("SOURCE_BUDGET_SECONDS must be a positive integer, got %q", s)
		}
		budget = time.Duration(v) * time.Second
	}

	bootstrap := 12 * time.Hour
	if s := os.Getenv("BOOTSTRAP_WINDOW_HOURS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("BOOTSTRAP_WINDOW_HOURS must be a positive integer, got %q", s)
		}
		bootstrap = time.Duration(v) * time.Hour
	}

	var sources []model.Source
	if s := os.Getenv("DEFAULT_SOURCES"); s != "" {
		for _, raw := range splitList(s) {
			src, err := model.ParseSource(raw)
			if err != nil {
				return nil, fmt.Errorf("DEFAULT_SOURCES: %w", err)
			}
			sources = append(sources, src)
		}
	} else {
		sources = model.AllSources
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		Port:                port,
		DatabaseURL:         dbURL,
		RedisURL:            redisURL,
		ScrapeSecret:        os.Getenv("SCRAPE_SECRET"),
		ScrapeIntervalHours: interval,
		DefaultRoles:        splitList(os.Getenv("DEFAULT_ROLES")),
		DefaultLocation:     os.Getenv("DEFAULT_LOCATION"),
		DefaultSources:      sources,
		SourceBudget:        budget,
		BootstrapWindow:     bootstrap,
		ExcludeTerms:        splitList(os.Getenv("EXCLUDE_TERMS")),
	}, nil
}

// splitList parses a comma-separated env value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
