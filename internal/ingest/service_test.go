package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/reviewguard/reviewguard/internal/review"
	"github.com/reviewguard/reviewguard/internal/storage"
	"github.com/reviewguard/reviewguard/internal/summary"
	"github.com/reviewguard/reviewguard/pkg/config"
	apperrors "github.com/reviewguard/reviewguard/pkg/errors"
	"github.com/reviewguard/reviewguard/pkg/kafka"
)

// fakeScorer scripts the classifier's behaviour per test.
type fakeScorer struct {
	batchCalls int
	fileCalls  int
	batchErr   error
	fileErr    error
	analysis   *review.FileAnalysis
}

func (f *fakeScorer) ScoreBatch(_ context.Context, texts []string) ([]review.ScoredReview, error) {
	f.batchCalls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	results := make([]review.ScoredReview, len(texts))
	for i, text := range texts {
		results[i] = review.ScoredReview{Text: text, Label: review.LabelGenuine, Sentiment: 0.4}
	}
	return results, nil
}

func (f *fakeScorer) ScoreFile(_ context.Context, key string) (*review.FileAnalysis, error) {
	f.fileCalls++
	if f.fileErr != nil {
		return nil, f.fileErr
	}
	if f.analysis != nil {
		return f.analysis, nil
	}
	return &review.FileAnalysis{
		Results: []review.ScoredReview{{Text: "row", Label: review.LabelGenuine, Sentiment: 0.1}},
		Summary: review.Summary{TotalReviews: 1, Suspicious: 0, AvgSentiment: 0.1},
	}, nil
}

type recordedEvent struct {
	key   string
	value any
}

type fakePublisher struct {
	events []recordedEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, recordedEvent{key: e.Key, value: e.Value})
	return nil
}

type fakeRecorder struct {
	rows []review.UploadArtifact
	err  error
}

func (f *fakeRecorder) Insert(_ context.Context, a review.UploadArtifact) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, a)
	return nil
}

func newService(blobs storage.BlobStore, scorer Scorer, opts ...Option) (*Service, *summary.Cache) {
	cache := summary.NewCache(blobs)
	cfg := config.UploadsConfig{KeyPrefix: "uploads/", MaxFileSize: 1 << 20}
	return New(blobs, scorer, cache, cfg, 5, opts...), cache
}

func TestAnalyzeReviewsValidationNeverReachesScorer(t *testing.T) {
	scorer := &fakeScorer{}
	svc, _ := newService(storage.NewMemoryStore(), scorer)

	for _, texts := range [][]string{nil, {}, {""}, {"   "}} {
		_, err := svc.AnalyzeReviews(context.Background(), texts)
		if !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("AnalyzeReviews(%q) error = %v, want ErrValidation", texts, err)
		}
	}
	if scorer.batchCalls != 0 {
		t.Errorf("scorer was called %d times for invalid input", scorer.batchCalls)
	}
}

func TestAnalyzeReviewsSingleGoesThroughBatchPath(t *testing.T) {
	scorer := &fakeScorer{}
	blobs := storage.NewMemoryStore()
	svc, cache := newService(blobs, scorer)

	results, err := svc.AnalyzeReviews(context.Background(), []string{"Great product, fast shipping!"})
	if err != nil {
		t.Fatalf("AnalyzeReviews: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Label != review.LabelGenuine && results[0].Label != review.LabelSuspicious {
		t.Errorf("label = %q", results[0].Label)
	}

	// Single-review analysis must never touch the latest-summary slot.
	if _, err := cache.ReadLatest(context.Background()); !errors.Is(err, apperrors.ErrSummaryAbsent) {
		t.Errorf("summary slot was written by AnalyzeReviews: %v", err)
	}
}

func TestAnalyzeFileHappyPath(t *testing.T) {
	scorer := &fakeScorer{analysis: &review.FileAnalysis{
		Results: []review.ScoredReview{
			{Text: "good", Label: review.LabelGenuine, Sentiment: 0.8},
			{Text: "bad", Label: review.LabelSuspicious, Sentiment: -0.6},
		},
		Summary: review.Summary{TotalReviews: 2, Suspicious: 1, AvgSentiment: 0.1},
	}}
	blobs := storage.NewMemoryStore()
	events := &fakePublisher{}
	rows := &fakeRecorder{}
	svc, cache := newService(blobs, scorer, WithEvents(events), WithUploadRecorder(rows))

	resp, err := svc.AnalyzeFile(context.Background(), []byte("text\ngood\nbad\n"), "reviews.csv", "text/csv")
	if err != nil {
		t.Fatalf("AnalyzeFile: %v", err)
	}
	if resp.Analysis == nil {
		t.Fatal("analysis is nil on the happy path")
	}
	if !strings.HasPrefix(resp.S3Key, "uploads/") || !strings.HasSuffix(resp.S3Key, "_reviews.csv") {
		t.Errorf("storage key = %q", resp.S3Key)
	}

	// Raw upload persisted under the returned key.
	if _, err := blobs.Get(context.Background(), resp.S3Key); err != nil {
		t.Errorf("raw upload not stored: %v", err)
	}

	// Summary slot refreshed with a consistent rate.
	latest, err := cache.ReadLatest(context.Background())
	if err != nil {
		t.Fatalf("ReadLatest after ingest: %v", err)
	}
	if latest.TotalReviews != 2 || latest.Suspicious != 1 || latest.SuspiciousRate != 0.5 {
		t.Errorf("latest = %+v", latest)
	}

	if len(rows.rows) != 1 || !rows.rows[0].Scored {
		t.Errorf("upload row = %+v", rows.rows)
	}
	if len(events.events) != 1 || events.events[0].key != resp.S3Key {
		t.Errorf("events = %+v", events.events)
	}
}

func TestAnalyzeFileScoringFailureDegrades(t *testing.T) {
	scorer := &fakeScorer{fileErr: fmt.Errorf("%w: connection refused", apperrors.ErrUpstreamUnavailable)}
	blobs := storage.NewMemoryStore()
	svc, cache := newService(blobs, scorer)

	resp, err := svc.AnalyzeFile(context.Background(), []byte("text\nrow\n"), "batch.csv", "text/csv")
	if err != nil {
		t.Fatalf("AnalyzeFile should not fail when only scoring fails: %v", err)
	}
	if resp.S3Key == "" {
		t.Error("response lacks the storage key")
	}
	if resp.Analysis != nil {
		t.Error("analysis should be null when scoring failed")
	}

	// Upload retained, slot untouched.
	if _, err := blobs.Get(context.Background(), resp.S3Key); err != nil {
		t.Errorf("upload was not retained: %v", err)
	}
	if _, err := cache.ReadLatest(context.Background()); !errors.Is(err, apperrors.ErrSummaryAbsent) {
		t.Errorf("summary slot should stay absent, got %v", err)
	}
}

func TestAnalyzeFileEmptyRejected(t *testing.T) {
	scorer := &fakeScorer{}
	svc, _ := newService(storage.NewMemoryStore(), scorer)

	_, err := svc.AnalyzeFile(context.Background(), nil, "empty.csv", "text/csv")
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if scorer.fileCalls != 0 {
		t.Error("scorer called for an empty upload")
	}
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte, string) error {
	return fmt.Errorf("%w: put refused", apperrors.ErrStorage)
}
func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("%w: get refused", apperrors.ErrStorage)
}

func TestAnalyzeFileStorageFailureAborts(t *testing.T) {
	scorer := &fakeScorer{}
	cache := summary.NewCache(failingStore{})
	svc := New(failingStore{}, scorer, cache, config.UploadsConfig{KeyPrefix: "uploads/"}, 5)

	_, err := svc.AnalyzeFile(context.Background(), []byte("data"), "f.csv", "text/csv")
	if !errors.Is(err, apperrors.ErrStorage) {
		t.Fatalf("error = %v, want ErrStorage", err)
	}
	if scorer.fileCalls != 0 {
		t.Error("scorer called even though storage failed")
	}
}

func TestBuildKeyDedupeMode(t *testing.T) {
	blobs := storage.NewMemoryStore()
	cache := summary.NewCache(blobs)
	cfg := config.UploadsConfig{KeyPrefix: "uploads/", DedupeByContentHash: true}
	svc := New(blobs, &fakeScorer{}, cache, cfg, 5)

	data := []byte("same bytes")
	k1 := svc.buildKey("a.csv", data)
	k2 := svc.buildKey("a.csv", data)
	if k1 != k2 {
		t.Errorf("dedupe keys differ: %q vs %q", k1, k2)
	}
	if !strings.HasPrefix(k1, "uploads/sha256-") {
		t.Errorf("dedupe key = %q", k1)
	}

	timed := New(blobs, &fakeScorer{}, cache, config.UploadsConfig{KeyPrefix: "uploads/"}, 5)
	tk := timed.buildKey("a.csv", data)
	if !strings.HasPrefix(tk, "uploads/") || !strings.HasSuffix(tk, "_a.csv") {
		t.Errorf("time-derived key = %q", tk)
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"reviews.csv", "reviews.csv"},
		{"my reviews.csv", "my_reviews.csv"},
		{"../../etc/passwd", "passwd"},
		{"", "upload"},
	}
	for _, tt := range tests {
		if got := sanitizeFileName(tt.in); got != tt.want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
