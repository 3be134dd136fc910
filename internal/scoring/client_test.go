package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reviewguard/reviewguard/internal/review"
	"github.com/reviewguard/reviewguard/pkg/config"
	apperrors "github.com/reviewguard/reviewguard/pkg/errors"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ScoringConfig{
		BaseURL:          srv.URL,
		Timeout:          2 * time.Second,
		BreakerThreshold: 100, // keep the breaker out of the way unless a test wants it
	})
}

func TestScoreBatchPreservesOrderAndLength(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Reviews []string `json:"reviews"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		results := make([]review.ScoredReview, len(req.Reviews))
		for i, text := range req.Reviews {
			results[i] = review.ScoredReview{Text: text, Label: review.LabelGenuine, Sentiment: 0.5}
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	})

	texts := []string{"first review", "second review", "third review"}
	results, err := c.ScoreBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("ScoreBatch: %v", err)
	}
	if len(results) != len(texts) {
		t.Fatalf("got %d results, want %d", len(results), len(texts))
	}
	for i, r := range results {
		if r.Text != texts[i] {
			t.Errorf("result %d = %q, want %q (order not preserved)", i, r.Text, texts[i])
		}
	}
}

func TestScoreBatchLengthMismatchIsProtocolError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []review.ScoredReview{{Text: "only one", Label: review.LabelGenuine}},
		})
	})

	_, err := c.ScoreBatch(context.Background(), []string{"one", "two"})
	if !errors.Is(err, apperrors.ErrUpstreamProtocol) {
		t.Fatalf("error = %v, want ErrUpstreamProtocol", err)
	}
}

func TestScoreBatchEmptyInputRejectedLocally(t *testing.T) {
	called := false
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.ScoreBatch(context.Background(), nil)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if called {
		t.Error("scoring service was called for an empty batch")
	}
}

func TestScoreBatchNetworkFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(config.ScoringConfig{BaseURL: srv.URL, Timeout: time.Second, BreakerThreshold: 100})
	_, err := c.ScoreBatch(context.Background(), []string{"text"})
	if !errors.Is(err, apperrors.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
	if !IsUpstreamError(err) {
		t.Error("IsUpstreamError should be true for a network failure")
	}
}

func TestScoreBatchBadStatusIsProtocolError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	})

	_, err := c.ScoreBatch(context.Background(), []string{"text"})
	if !errors.Is(err, apperrors.ErrUpstreamProtocol) {
		t.Fatalf("error = %v, want ErrUpstreamProtocol", err)
	}
}

func TestScoreFile(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze-file" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			S3Key string `json:"s3_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.S3Key != "uploads/123_reviews.csv" {
			t.Errorf("s3_key = %q", req.S3Key)
		}
		json.NewEncoder(w).Encode(review.FileAnalysis{
			Results: []review.ScoredReview{{Text: "ok", Label: review.LabelGenuine}},
			Summary: review.Summary{TotalReviews: 1, Suspicious: 0, AvgSentiment: 0.2},
		})
	})

	analysis, err := c.ScoreFile(context.Background(), "uploads/123_reviews.csv")
	if err != nil {
		t.Fatalf("ScoreFile: %v", err)
	}
	if analysis.Summary.TotalReviews != 1 {
		t.Errorf("total_reviews = %d, want 1", analysis.Summary.TotalReviews)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(config.ScoringConfig{
		BaseURL:          srv.URL,
		Timeout:          time.Second,
		BreakerThreshold: 2,
		BreakerReset:     time.Minute,
	})

	for i := 0; i < 2; i++ {
		if _, err := c.ScoreBatch(context.Background(), []string{"x"}); err == nil {
			t.Fatal("expected failure")
		}
	}
	_, err := c.ScoreBatch(context.Background(), []string{"x"})
	if err == nil || !IsUpstreamError(err) {
		t.Fatalf("error = %v, want an upstream error once the circuit is open", err)
	}
}
