package api_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobradar/aggregator-service/internal/api"
	"jobradar/aggregator-service/internal/orchestrator"
)

// newTestApp wires an app whose orchestrator rejects everything at
// validation, which is all these routing-level tests need.
func newTestApp(secret string) *fiber.App {
	app := fiber.New()
	orch := orchestrator.New(nil, nil, orchestrator.Options{})
	api.NewHandler(orch, nil, nil, nil, secret).Register(app)
	return app
}

func TestScrape_RejectsMissingSecret(t *testing.T) {
	app := newTestApp("s3cret")

	req := httptest.NewRequest("POST", "/api/v1/scrape", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestScrape_RejectsWrongSecret(t *testing.T) {
	app := newTestApp("s3cret")

	req := httptest.NewRequest("POST", "/api/v1/scrape", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-scrape-secret", "nope")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestScrape_EmptyRequestIsBadRequest(t *testing.T) {
	app := newTestApp("s3cret")

	req := httptest.NewRequest("POST", "/api/v1/scrape",
		strings.NewReader(`{"roles":[],"location":"Bengaluru","sources":[]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-scrape-secret", "s3cret")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestScrape_MalformedBodyIsBadRequest(t *testing.T) {
	app := newTestApp("")

	req := httptest.NewRequest("POST", "/api/v1/scrape", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestScrape_UnknownSourceIsBadRequest(t *testing.T) {
	app := newTestApp("")

	req := httptest.NewRequest("POST", "/api/v1/scrape",
		strings.NewReader(`{"roles":["PM"],"location":"Pune","sources":["monster"]}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSearch_RejectsBadDays(t *testing.T) {
	app := newTestApp("")

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/search?days=zero", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSearch_RejectsUnknownSource(t *testing.T) {
	app := newTestApp("")

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/search?sources=monster", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
