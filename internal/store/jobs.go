// Package store owns all access to persisted state: the jobs table and the
// per-source watermarks. Both surfaces expose single-row atomic operations
// so concurrent source runs need no external locking.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobradar/aggregator-service/internal/model"
)

// UpsertOutcome is the result of one insert-if-absent attempt.
type UpsertOutcome int

const (
	// Inserted means the record was new and is now persisted.
	Inserted UpsertOutcome = iota
	// SkippedDuplicate means a row with the same dedup key already exists.
	// The stored row is left untouched: first-seen wins.
	SkippedDuplicate
)

// Jobs is the Postgres-backed record store.
type Jobs struct {
	pool *pgxpool.Pool
}

// NewJobs wraps an existing connection pool. The pool is owned by the
// caller and shared with the rest of the process.
func NewJobs(pool *pgxpool.Pool) *Jobs {
	return &Jobs{pool: pool}
}

// InsertIfAbsent writes the record unless its dedup key already exists.
// The write is a single conditional INSERT resolved by the unique indexes,
// not a read-then-write, so concurrent upserts of the same key settle to
// exactly one Inserted.
func (s *Jobs) InsertIfAbsent(ctx context.Context, rec model.JobRecord) (UpsertOutcome, error) {
	conflict := `ON CONFLICT (source, url) WHERE url <> '' DO NOTHING`
	if rec.URL == "" {
		conflict = `ON CONFLICT (source, lower(company), lower(title), posted_at) WHERE url = '' DO NOTHING`
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, title, company, location, url, source, posted_at, days_ago)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) `+conflict,
		uuid.NewString(), rec.Title, rec.Company, rec.Location, rec.URL,
		string(rec.Source), rec.PostedAt, rec.DaysAgo,
	)
	if err != nil {
		return SkippedDuplicate, fmt.Errorf("insert job: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return SkippedDuplicate, nil
	}
	return Inserted, nil
}

// StoredJob is a persisted record as returned by Search.
type StoredJob struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Company   string     `json:"company"`
	Location  string     `json:"location"`
	URL       string     `json:"url"`
	Source    string     `json:"source"`
	PostedAt  *time.Time `json:"postedAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// SearchFilter narrows a read-only jobs query. Zero values leave the
// corresponding dimension unfiltered.
type SearchFilter struct {
	Roles    []string // substring match against title, any-of
	Location string   // substring match
	Days     int      // recency window over created_at
	Sources  []model.Source
}

const searchLimit = 50

// Search returns the most recent matches, newest first, capped at 50.
func (s *Jobs) Search(ctx context.Context, f SearchFilter) ([]StoredJob, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT id::text, title, company, location, url, source, posted_at, created_at
		FROM jobs WHERE 1=1`)

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Roles) > 0 {
		conds := make([]string, 0, len(f.Roles))
		for _, role := range f.Roles {
			conds = append(conds, "title ILIKE "+arg("%"+role+"%"))
		}
		query.WriteString(" AND (" + strings.Join(conds, " OR ") + ")")
	}
	if f.Location != "" {
		query.WriteString(" AND location ILIKE " + arg("%"+f.Location+"%"))
	}
	if f.Days > 0 {
		query.WriteString(" AND created_at >= NOW() - make_interval(days => " + arg(f.Days) + ")")
	}
	if len(f.Sources) > 0 {
		conds := make([]string, 0, len(f.Sources))
		for _, src := range f.Sources {
			conds = append(conds, "source = "+arg(string(src)))
		}
		query.WriteString(" AND (" + strings.Join(conds, " OR ") + ")")
	}
	query.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", searchLimit))

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []StoredJob
	for rows.Next() {
		var j StoredJob
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.URL,
			&j.Source, &j.PostedAt, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
