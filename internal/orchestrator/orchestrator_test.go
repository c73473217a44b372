package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobradar/aggregator-service/internal/model"
	"jobradar/aggregator-service/internal/orchestrator"
	"jobradar/aggregator-service/internal/scrape"
	"jobradar/aggregator-service/internal/store"
)

// ── In-memory fakes ────────────────────────────────────────────────────────

type memJobs struct {
	mu   sync.Mutex
	rows map[string]model.JobRecord
}

func newMemJobs() *memJobs { return &memJobs{rows: make(map[string]model.JobRecord)} }

func (m *memJobs) InsertIfAbsent(_ context.Context, rec model.JobRecord) (store.UpsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fp := rec.Fingerprint()
	if _, exists := m.rows[fp]; exists {
		return store.SkippedDuplicate, nil
	}
	m.rows[fp] = rec
	return store.Inserted, nil
}

type memMarks struct {
	mu    sync.Mutex
	marks map[model.Source]time.Time
}

func newMemMarks() *memMarks { return &memMarks{marks: make(map[model.Source]time.Time)} }

func (m *memMarks) Get(_ context.Context, source model.Source) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.marks[source]
	return ts, ok, nil
}

func (m *memMarks) Set(_ context.Context, source model.Source, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[source] = ts
	return nil
}

type fakeRunner struct {
	run func(ctx context.Context, roles []string, location string, watermark time.Time) (scrape.RunResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, roles []string, location string, watermark time.Time) (scrape.RunResult, error) {
	return f.run(ctx, roles, location, watermark)
}

func singleRunner(r orchestrator.Runner) orchestrator.RunnerFactory {
	return func(model.Source) (orchestrator.Runner, bool) { return r, true }
}

var runStart = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func record(url string) model.JobRecord {
	return model.JobRecord{Title: "Product Manager", Company: "Acme", URL: url, Source: model.SourceNaukri}
}

func naukriRequest() model.ScrapeRequest {
	return model.ScrapeRequest{
		Roles:    []string{"Product Manager"},
		Location: "Bengaluru",
		Sources:  []model.Source{model.SourceNaukri},
	}
}

// ── Validation ─────────────────────────────────────────────────────────────

func TestRun_RejectsEmptyRequest(t *testing.T) {
	invoked := false
	o := orchestrator.New(newMemJobs(), newMemMarks(), orchestrator.Options{
		NewRunner: singleRunner(&fakeRunner{run: func(context.Context, []string, string, time.Time) (scrape.RunResult, error) {
			invoked = true
			return scrape.RunResult{}, nil
		}}),
	})

	_, err := o.Run(context.Background(), model.ScrapeRequest{})
	assert.ErrorIs(t, err, orchestrator.ErrValidation)
	assert.False(t, invoked, "no adapter may run on a rejected request")
}

// ── Scenario: first run and watermark-advanced replay ──────────────────────

func TestRun_ScenarioFirstRunThenReplay(t *testing.T) {
	jobs := newMemJobs()
	marks := newMemMarks()

	postings := []model.JobRecord{record("https://n/1"), record("https://n/2"), record("https://n/3")}
	posted := runStart.Add(-2 * time.Hour)
	for i := range postings {
		postings[i].PostedAt = &posted
	}

	var sawWatermark time.Time
	runner := &fakeRunner{run: func(_ context.Context, _ []string, _ string, watermark time.Time) (scrape.RunResult, error) {
		sawWatermark = watermark
		var kept []model.JobRecord
		for _, p := range postings {
			if p.PostedAt.After(watermark) {
				kept = append(kept, p)
			}
		}
		return scrape.RunResult{Records: kept, PagesFetched: 2}, nil
	}}

	clock := runStart
	o := orchestrator.New(jobs, marks, orchestrator.Options{
		BootstrapWindow: 12 * time.Hour,
		NewRunner:       singleRunner(runner),
		Now:             func() time.Time { return clock },
	})

	// First-ever run: watermark seeded to a 12h bootstrap window.
	summary, err := o.Run(context.Background(), naukriRequest())
	require.NoError(t, err)
	assert.Equal(t, runStart.Add(-12*time.Hour), sawWatermark)
	assert.Equal(t, 3, summary.Inserted)
	assert.Equal(t, 3, summary.Sources[model.SourceNaukri].Fetched)

	wm, found, _ := marks.Get(context.Background(), model.SourceNaukri)
	require.True(t, found, "watermark must be advanced after a successful run")
	assert.Equal(t, runStart, wm, "watermark is run start time, not max postedAt")

	// Immediate replay: the three postings are now older than the watermark
	// and filtered before they reach the dedup engine.
	clock = runStart.Add(time.Hour)
	summary, err = o.Run(context.Background(), naukriRequest())
	require.NoError(t, err)
	assert.Equal(t, runStart, sawWatermark)
	assert.Equal(t, 0, summary.Inserted)
	assert.Equal(t, 0, summary.Sources[model.SourceNaukri].Fetched)

	wm2, _, _ := marks.Get(context.Background(), model.SourceNaukri)
	assert.True(t, !wm2.Before(wm), "watermark is monotonically non-decreasing")
}

// ── Idempotence ────────────────────────────────────────────────────────────

func TestRun_SecondRunInsertsNothing(t *testing.T) {
	jobs := newMemJobs()
	// Runner ignores the watermark, so both runs surface identical records:
	// the dedup engine alone must suppress the second batch.
	runner := &fakeRunner{run: func(context.Context, []string, string, time.Time) (scrape.RunResult, error) {
		return scrape.RunResult{
			Records:      []model.JobRecord{record("https://n/1"), record("https://n/2")},
			PagesFetched: 1,
		}, nil
	}}

	o := orchestrator.New(jobs, newMemMarks(), orchestrator.Options{NewRunner: singleRunner(runner)})

	first, err := o.Run(context.Background(), naukriRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := o.Run(context.Background(), naukriRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Sources[model.SourceNaukri].SkippedDuplicate)
}

func TestRun_DuplicateRecordsWithinRunSettleToOneInsert(t *testing.T) {
	runner := &fakeRunner{run: func(context.Context, []string, string, time.Time) (scrape.RunResult, error) {
		return scrape.RunResult{
			Records:      []model.JobRecord{record("https://n/1"), record("https://n/1")},
			PagesFetched: 1,
		}, nil
	}}

	o := orchestrator.New(newMemJobs(), newMemMarks(), orchestrator.Options{NewRunner: singleRunner(runner)})
	summary, err := o.Run(context.Background(), naukriRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Sources[model.SourceNaukri].SkippedDuplicate)
}

// ── Watermark withholding ──────────────────────────────────────────────────

func TestRun_ZeroPagesWithholdsWatermark(t *testing.T) {
	marks := newMemMarks()
	runner := &fakeRunner{run: func(context.Context, []string, string, time.Time) (scrape.RunResult, error) {
		return scrape.RunResult{FailedRoles: 1}, errors.New("total failure")
	}}

	o := orchestrator.New(newMemJobs(), marks, orchestrator.Options{NewRunner: singleRunner(runner)})
	summary, err := o.Run(context.Background(), naukriRequest())
	require.NoError(t, err, "per-source failure is never fatal to the run")

	_, found, _ := marks.Get(context.Background(), model.SourceNaukri)
	assert.False(t, found, "watermark must not advance when no page was fetched")
	assert.Equal(t, 1, summary.Sources[model.SourceNaukri].Failed)
}

func TestRun_BudgetExceededCommitsPartialWithholdsWatermark(t *testing.T) {
	marks := newMemMarks()
	runner := &fakeRunner{run: func(ctx context.Context, _ []string, _ string, _ time.Time) (scrape.RunResult, error) {
		<-ctx.Done() // burn the whole budget
		return scrape.RunResult{
			Records:      []model.JobRecord{record("https://n/partial")},
			PagesFetched: 1,
		}, ctx.Err()
	}}

	o := orchestrator.New(newMemJobs(), marks, orchestrator.Options{
		SourceBudget: 10 * time.Millisecond,
		NewRunner:    singleRunner(runner),
	})

	summary, err := o.Run(context.Background(), naukriRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted, "partial results are still committed")

	_, found, _ := marks.Get(context.Background(), model.SourceNaukri)
	assert.False(t, found, "watermark withheld on a budget-exceeded run")
	assert.NotEmpty(t, summary.Sources[model.SourceNaukri].Error)
}

// ── Source isolation ───────────────────────────────────────────────────────

func TestRun_FailedSourceDoesNotBlockOthers(t *testing.T) {
	marks := newMemMarks()
	factory := func(source model.Source) (orchestrator.Runner, bool) {
		if source == model.SourceLinkedIn {
			return &fakeRunner{run: func(context.Context, []string, string, time.Time) (scrape.RunResult, error) {
				return scrape.RunResult{}, errors.New("blocked everywhere")
			}}, true
		}
		return &fakeRunner{run: func(context.Context, []string, string, time.Time) (scrape.RunResult, error) {
			return scrape.RunResult{
				Records:      []model.JobRecord{record("https://n/1")},
				PagesFetched: 1,
			}, nil
		}}, true
	}

	o := orchestrator.New(newMemJobs(), marks, orchestrator.Options{NewRunner: factory})
	req := naukriRequest()
	req.Sources = []model.Source{model.SourceLinkedIn, model.SourceNaukri}

	summary, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)

	_, linkedinFound, _ := marks.Get(context.Background(), model.SourceLinkedIn)
	_, naukriFound, _ := marks.Get(context.Background(), model.SourceNaukri)
	assert.False(t, linkedinFound, "failed source keeps its watermark")
	assert.True(t, naukriFound, "healthy source advances independently")
}
