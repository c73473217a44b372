package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"jobradar/aggregator-service/internal/model"
)

const watermarkKeyPrefix = "watermark:"

// Watermarks tracks, per source, the start time of the last completed
// scrape run. Backed by one Redis key per source.
type Watermarks struct {
	rdb *redis.Client
}

// NewWatermarks wraps an existing Redis client.
func NewWatermarks(rdb *redis.Client) *Watermarks {
	return &Watermarks{rdb: rdb}
}

// Get returns the source's watermark. The second return is false when the
// source has never completed a run — the caller seeds a bootstrap window.
func (w *Watermarks) Get(ctx context.Context, source model.Source) (time.Time, bool, error) {
	val, err := w.rdb.Get(ctx, watermarkKeyPrefix+string(source)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get watermark for %s: %w", source, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt watermark for %s: %w", source, err)
	}
	return ts, true, nil
}

// Set overwrites the source's watermark. Callers pass the run's start time,
// not the newest postedAt seen, so posting-side clock skew can never move
// the watermark relative to wall-clock run boundaries.
func (w *Watermarks) Set(ctx context.Context, source model.Source, ts time.Time) error {
	err := w.rdb.Set(ctx, watermarkKeyPrefix+string(source), ts.UTC().Format(time.RFC3339Nano), 0).Err()
	if err != nil {
		return fmt.Errorf("set watermark for %s: %w", source, err)
	}
	return nil
}
