// Package scoring talks to the external classifier service. The classifier
// exposes two operations: batch scoring of raw texts, and scoring of a CSV
// previously persisted to the blob store, referenced by its storage key.
// The client classifies failures but never retries; degrade policy belongs
// to the caller.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/reviewguard/reviewguard/internal/review"
	"github.com/reviewguard/reviewguard/pkg/config"
	apperrors "github.com/reviewguard/reviewguard/pkg/errors"
	"github.com/reviewguard/reviewguard/pkg/metrics"
	"github.com/reviewguard/reviewguard/pkg/resilience"
)

// Client calls the scoring service over HTTP JSON.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures optional Client collaborators.
type Option func(*Client)

// WithMetrics records scoring latency and circuit-breaker state.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a reusable scoring client with a circuit breaker sized
// from config.
func NewClient(cfg config.ScoringConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.NewCircuitBreaker("scoring", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerThreshold,
			ResetTimeout:     cfg.BreakerReset,
		}),
		logger: slog.Default().With("component", "scoring-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type analyzeRequest struct {
	Reviews []string `json:"reviews"`
}

type analyzeResponse struct {
	Results []review.ScoredReview `json:"results"`
}

type analyzeFileRequest struct {
	S3Key string `json:"s3_key"`
}

// ScoreBatch scores the given texts. The result is order-preserving and has
// exactly one entry per input; any other shape from upstream is reported as
// a protocol error.
func (c *Client) ScoreBatch(ctx context.Context, texts []string) ([]review.ScoredReview, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: empty batch", apperrors.ErrValidation)
	}
	var out analyzeResponse
	if err := c.post(ctx, "/analyze", analyzeRequest{Reviews: texts}, &out); err != nil {
		return nil, err
	}
	if len(out.Results) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d reviews, got %d results",
			apperrors.ErrUpstreamProtocol, len(texts), len(out.Results))
	}
	return out.Results, nil
}

// ScoreFile asks the classifier to fetch, parse, and score the CSV stored
// under the given blob key. The classifier locates the file itself.
func (c *Client) ScoreFile(ctx context.Context, storageKey string) (*review.FileAnalysis, error) {
	if storageKey == "" {
		return nil, fmt.Errorf("%w: empty storage key", apperrors.ErrValidation)
	}
	var out review.FileAnalysis
	if err := c.post(ctx, "/analyze-file", analyzeFileRequest{S3Key: storageKey}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping probes the classifier; used by the readiness checker.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	operation := strings.TrimPrefix(path, "/")
	err = c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.timeout, "scoring "+path, func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("building request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			start := time.Now()
			resp, err := c.http.Do(req)
			if c.metrics != nil {
				c.metrics.ScoringLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
			}
			if err != nil {
				c.logger.Error("scoring call failed", "path", path, "error", err)
				return fmt.Errorf("%w: %v", apperrors.ErrUpstreamUnavailable, err)
			}
			defer resp.Body.Close()

			c.logger.Debug("scoring call completed",
				"path", path,
				"status", resp.StatusCode,
				"duration", time.Since(start),
			)

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("%w: unexpected status %s from %s",
					apperrors.ErrUpstreamProtocol, resp.Status, path)
			}
			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return fmt.Errorf("%w: decoding %s response: %v",
					apperrors.ErrUpstreamProtocol, path, err)
			}
			return nil
		})
	})
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues("scoring").Set(float64(c.breaker.GetState()))
	}
	return err
}

// IsUpstreamError reports whether err came from the scoring service rather
// than from the caller's own input.
func IsUpstreamError(err error) bool {
	return errors.Is(err, apperrors.ErrUpstreamUnavailable) ||
		errors.Is(err, apperrors.ErrUpstreamProtocol) ||
		errors.Is(err, apperrors.ErrTimeout) ||
		errors.Is(err, resilience.ErrCircuitOpen)
}
