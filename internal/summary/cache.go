// Package summary maintains the "latest summary" artifact: a single
// well-known blob-store key that is overwritten whole after every
// successful file ingestion and polled by the dashboard. The blob store is
// the source of truth; an optional Redis layer absorbs the 5-second poll
// traffic. Writes are last-write-wins; there is no versioning, and because
// the document is always replaced whole a reader can never observe a mix
// of two writes.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/reviewguard/reviewguard/internal/review"
	"github.com/reviewguard/reviewguard/internal/storage"
	apperrors "github.com/reviewguard/reviewguard/pkg/errors"
	"github.com/reviewguard/reviewguard/pkg/metrics"
	pkgredis "github.com/reviewguard/reviewguard/pkg/redis"
)

// SlotKey is the fixed blob-store key holding the latest summary.
const SlotKey = "latest_summary.json"

const redisKey = "summary:latest"

// Cache reads and writes the latest-summary slot.
type Cache struct {
	blobs   storage.BlobStore
	rdb     *pkgredis.Client // nil when the Redis layer is disabled
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics // nil in tests
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithRedis layers a Redis cache with the given TTL over the blob store.
func WithRedis(rdb *pkgredis.Client, ttl time.Duration) Option {
	return func(c *Cache) {
		c.rdb = rdb
		c.ttl = ttl
	}
}

// WithMetrics records cache hit/miss counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// NewCache creates a Cache backed by the given blob store.
func NewCache(blobs storage.BlobStore, opts ...Option) *Cache {
	c := &Cache{
		blobs:  blobs,
		logger: slog.Default().With("component", "summary-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WriteLatest overwrites the slot with the given summary. There is no
// compare-and-swap: under concurrent uploads the last writer wins.
func (c *Cache) WriteLatest(ctx context.Context, s review.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := c.blobs.Put(ctx, SlotKey, data, "application/json"); err != nil {
		return err
	}
	if c.rdb != nil {
		// Drop the cached copy so the next poll sees the new document.
		if err := c.rdb.Del(ctx, redisKey); err != nil {
			c.logger.Warn("failed to invalidate redis copy", "error", err)
		}
	}
	c.logger.Info("latest summary written",
		"total_reviews", s.TotalReviews,
		"suspicious", s.Suspicious,
		"suspicious_rate", s.SuspiciousRate,
	)
	return nil
}

// ReadLatest returns the current summary. Before any file has been ingested
// it returns ErrSummaryAbsent, which is an expected state and not a failure.
func (c *Cache) ReadLatest(ctx context.Context) (*review.Summary, error) {
	if c.rdb != nil {
		if s, ok := c.readRedis(ctx); ok {
			return s, nil
		}
	}

	// Collapse the dashboard's concurrent polls into one blob fetch.
	val, err, _ := c.group.Do(redisKey, func() (interface{}, error) {
		data, err := c.blobs.Get(ctx, SlotKey)
		if err != nil {
			if errors.Is(err, apperrors.ErrObjectNotFound) {
				return nil, apperrors.ErrSummaryAbsent
			}
			return nil, err
		}
		var s review.Summary
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("%w: unmarshaling summary slot: %v", apperrors.ErrStorage, err)
		}
		c.fillRedis(ctx, data)
		return &s, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*review.Summary), nil
}

func (c *Cache) readRedis(ctx context.Context) (*review.Summary, bool) {
	data, err := c.rdb.Get(ctx, redisKey)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("redis get failed", "error", err)
		}
		if c.metrics != nil {
			c.metrics.SummaryCacheMisses.Inc()
		}
		return nil, false
	}
	var s review.Summary
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		c.logger.Error("redis unmarshal failed", "error", err)
		if c.metrics != nil {
			c.metrics.SummaryCacheMisses.Inc()
		}
		return nil, false
	}
	if c.metrics != nil {
		c.metrics.SummaryCacheHits.Inc()
	}
	return &s, true
}

func (c *Cache) fillRedis(ctx context.Context, data []byte) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, redisKey, data, c.ttl); err != nil {
		c.logger.Warn("redis set failed", "error", err)
	}
}

// Normalize recomputes the derived fields of an upstream summary so the
// persisted document is internally consistent: the suspicious rate is
// always suspicious/total, and top_flagged holds the highest-probability
// suspicious reviews, capped at limit. Results without a probability sort
// after those with one.
func Normalize(s review.Summary, results []review.ScoredReview, limit int) review.Summary {
	if s.TotalReviews > 0 {
		s.SuspiciousRate = float64(s.Suspicious) / float64(s.TotalReviews)
	} else {
		s.SuspiciousRate = 0
	}

	flagged := make([]review.ScoredReview, 0, len(results))
	for _, r := range results {
		if r.Label == review.LabelSuspicious {
			flagged = append(flagged, r)
		}
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		pi, pj := flagged[i].Probability, flagged[j].Probability
		switch {
		case pi == nil && pj == nil:
			return false
		case pj == nil:
			return true
		case pi == nil:
			return false
		default:
			return *pi > *pj
		}
	})
	if limit > 0 && len(flagged) > limit {
		flagged = flagged[:limit]
	}
	s.TopFlagged = flagged
	return s
}
