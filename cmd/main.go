// jobradar-aggregator-service
//
// Incremental multi-source job scraping and ingestion pipeline. Exposes:
//   - POST /api/v1/scrape — trigger a run for {roles, location, sources}
//   - GET  /api/v1/search — query stored postings
//   - GET  /health        — liveness + DB/Redis connectivity
//
// Each configured source is scraped concurrently behind a per-source
// watermark so repeated runs only surface new postings; inserts are
// conditional so duplicates are skipped, never overwritten.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"jobradar/aggregator-service/internal/api"
	"jobradar/aggregator-service/internal/config"
	"jobradar/aggregator-service/internal/db"
	"jobradar/aggregator-service/internal/model"
	"jobradar/aggregator-service/internal/orchestrator"
	"jobradar/aggregator-service/internal/scheduler"
	"jobradar/aggregator-service/internal/store"
)

func main() {
	// ── Logging ─────────────────────────────────────────────────────────────
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	if level, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Info("connecting to PostgreSQL")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	// ── Pipeline ─────────────────────────────────────────────────────────────
	jobs := store.NewJobs(pool)
	marks := store.NewWatermarks(rdb)
	orch := orchestrator.New(jobs, marks, orchestrator.Options{
		SourceBudget:    cfg.SourceBudget,
		BootstrapWindow: cfg.BootstrapWindow,
		ExcludeTerms:    cfg.ExcludeTerms,
	})

	// ── Scheduler ────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if len(cfg.DefaultRoles) > 0 {
		sched = scheduler.New(orch, model.ScrapeRequest{
			Roles:    cfg.DefaultRoles,
			Location: cfg.DefaultLocation,
			Sources:  cfg.DefaultSources,
		}, cfg.ScrapeIntervalHours)
		if err := sched.Start(ctx); err != nil {
			log.Fatalf("scheduler: %v", err)
		}
		defer sched.Stop()
	} else {
		log.Info("DEFAULT_ROLES not set, scheduled scraping disabled")
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(api.RequestLogger())
	api.NewHandler(orch, jobs, pool, rdb, cfg.ScrapeSecret).Register(app)

	go func() {
		log.Infof("listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		log.Errorf("shutdown error: %v", err)
	}
	log.Info("stopped")
}
