// Package api exposes the HTTP surface: the scrape trigger, the read-only
// search endpoint, and the health check.
package api

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"jobradar/aggregator-service/internal/model"
	"jobradar/aggregator-service/internal/orchestrator"
	"jobradar/aggregator-service/internal/store"
)

const version = "1.0.0"

// Handler carries the collaborators the HTTP surface dispatches into.
type Handler struct {
	orch         *orchestrator.Orchestrator
	jobs         *store.Jobs
	pool         *pgxpool.Pool
	rdb          *redis.Client
	scrapeSecret string
}

// NewHandler constructs the HTTP handler set.
func NewHandler(orch *orchestrator.Orchestrator, jobs *store.Jobs, pool *pgxpool.Pool, rdb *redis.Client, scrapeSecret string) *Handler {
	return &Handler{orch: orch, jobs: jobs, pool: pool, rdb: rdb, scrapeSecret: scrapeSecret}
}

// Register mounts all routes on the app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")
	v1.Post("/scrape", h.Scrape)
	v1.Get("/search", h.Search)
}

type scrapeBody struct {
	Roles    []string `json:"roles"`
	Location string   `json:"location"`
	Sources  []string `json:"sources"`
}

// Scrape triggers a run. Gated by the x-scrape-secret header when a secret
// is configured.
func (h *Handler) Scrape(c *fiber.Ctx) error {
	if h.scrapeSecret != "" && c.Get("x-scrape-secret") != h.scrapeSecret {
		log.Warn("scrape trigger rejected: invalid or missing secret")
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}

	var body scrapeBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}

	req := model.ScrapeRequest{Roles: body.Roles, Location: body.Location}
	for _, s := range body.Sources {
		req.Sources = append(req.Sources, model.Source(strings.ToLower(strings.TrimSpace(s))))
	}

	summary, err := h.orch.Run(c.Context(), req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"inserted": summary.Inserted,
		"sources":  summary.Sources,
	})
}

// Search queries stored jobs by role substrings, location, recency window
// and sources.
func (h *Handler) Search(c *fiber.Ctx) error {
	filter := store.SearchFilter{
		Roles:    splitParam(c.Query("roles")),
		Location: c.Query("location"),
	}

	if days := c.Query("days"); days != "" {
		v, err := strconv.Atoi(days)
		if err != nil || v < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "days must be a positive integer"})
		}
		filter.Days = v
	}

	for _, raw := range splitParam(c.Query("sources")) {
		src, err := model.ParseSource(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		filter.Sources = append(filter.Sources, src)
	}

	jobs, err := h.jobs.Search(c.Context(), filter)
	if err != nil {
		log.Errorf("search failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "search failed"})
	}
	if jobs == nil {
		jobs = []store.StoredJob{}
	}
	return c.JSON(jobs)
}

// Health reports process liveness plus DB and Redis connectivity.
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	status := fiber.Map{"status": "ok", "service": "aggregator-service", "version": version}
	code := fiber.StatusOK

	if err := h.pool.Ping(ctx); err != nil {
		status["status"] = "degraded"
		status["db"] = err.Error()
		code = fiber.StatusInternalServerError
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		status["status"] = "degraded"
		status["redis"] = err.Error()
		code = fiber.StatusInternalServerError
	}

	return c.Status(code).JSON(status)
}

func splitParam(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
