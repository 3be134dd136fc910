// Package ingest coordinates the review ingestion pipeline: it validates
// submissions, delegates scoring to the external classifier, persists raw
// uploads and the latest-summary artifact to the blob store, and emits
// best-effort metadata records and events. The orchestrator holds no
// mutable state of its own; everything shared lives in the blob store.
package ingest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/reviewguard/reviewguard/internal/review"
	"github.com/reviewguard/reviewguard/internal/review/validator"
	"github.com/reviewguard/reviewguard/internal/storage"
	"github.com/reviewguard/reviewguard/internal/summary"
	"github.com/reviewguard/reviewguard/pkg/config"
	apperrors "github.com/reviewguard/reviewguard/pkg/errors"
	"github.com/reviewguard/reviewguard/pkg/kafka"
	"github.com/reviewguard/reviewguard/pkg/logger"
	"github.com/reviewguard/reviewguard/pkg/metrics"
)

// Scorer is the classifier surface the orchestrator depends on.
type Scorer interface {
	ScoreBatch(ctx context.Context, texts []string) ([]review.ScoredReview, error)
	ScoreFile(ctx context.Context, storageKey string) (*review.FileAnalysis, error)
}

// UploadRecorder persists upload-artifact metadata rows.
type UploadRecorder interface {
	Insert(ctx context.Context, artifact review.UploadArtifact) error
}

// EventPublisher emits ingestion events for downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// ReviewIngestedEvent is published after a file upload completes, whether
// or not scoring succeeded.
type ReviewIngestedEvent struct {
	StorageKey     string    `json:"storage_key"`
	OriginalName   string    `json:"original_name"`
	SizeBytes      int64     `json:"size_bytes"`
	Scored         bool      `json:"scored"`
	TotalReviews   int       `json:"total_reviews"`
	Suspicious     int       `json:"suspicious"`
	SuspiciousRate float64   `json:"suspicious_rate"`
	IngestedAt     time.Time `json:"ingested_at"`
}

// Service is the ingestion orchestrator.
type Service struct {
	blobs    storage.BlobStore
	scorer   Scorer
	cache    *summary.Cache
	uploads  UploadRecorder   // nil when Postgres is not configured
	events   EventPublisher   // nil when Kafka is disabled
	metrics  *metrics.Metrics // nil in tests
	uploadsC config.UploadsConfig
	topLimit int
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithUploadRecorder enables metadata rows for each upload.
func WithUploadRecorder(r UploadRecorder) Option {
	return func(s *Service) { s.uploads = r }
}

// WithEvents enables ingestion event publishing.
func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithMetrics records ingestion counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates the orchestrator.
func New(blobs storage.BlobStore, scorer Scorer, cache *summary.Cache, uploadsCfg config.UploadsConfig, topLimit int, opts ...Option) *Service {
	s := &Service{
		blobs:    blobs,
		scorer:   scorer,
		cache:    cache,
		uploadsC: uploadsCfg,
		topLimit: topLimit,
		logger:   slog.Default().With("component", "ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeReviews scores a batch of raw texts. A single review goes through
// the same path as a one-element batch; there is no dedicated single-item
// route. This operation never touches the latest-summary slot.
func (s *Service) AnalyzeReviews(ctx context.Context, texts []string) ([]review.ScoredReview, error) {
	if err := validator.ValidateAnalyzeRequest(&review.AnalyzeRequest{Reviews: texts}); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}

	results, err := s.scorer.ScoreBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		for _, r := range results {
			s.metrics.ReviewsAnalyzedTotal.WithLabelValues(r.Label).Inc()
		}
	}
	return results, nil
}

// AnalyzeFile runs the file ingestion pipeline: persist the raw upload,
// delegate scoring by storage key, and refresh the latest-summary slot.
// Storage failure aborts the request. Any failure after the upload is
// stored degrades to a null-analysis success: the file is retained, the
// caller gets its key back, and the summary slot is left untouched.
func (s *Service) AnalyzeFile(ctx context.Context, data []byte, fileName, contentType string) (*review.UploadResponse, error) {
	log := logger.FromContext(ctx).With("component", "ingest")

	if len(data) == 0 {
		return nil, apperrors.New(apperrors.ErrValidation, 400, "no file uploaded")
	}
	if s.uploadsC.MaxFileSize > 0 && int64(len(data)) > s.uploadsC.MaxFileSize {
		return nil, apperrors.Newf(apperrors.ErrValidation, 400, "file exceeds %d bytes", s.uploadsC.MaxFileSize)
	}

	key := s.buildKey(fileName, data)
	if err := s.blobs.Put(ctx, key, data, contentType); err != nil {
		s.countUpload("failed")
		return nil, err
	}

	resp := &review.UploadResponse{
		Message: "File uploaded successfully",
		S3Key:   key,
	}

	analysis, err := s.scorer.ScoreFile(ctx, key)
	if err != nil {
		// The upload is not rolled back; the response reports the stored
		// key with a null analysis.
		log.Warn("scoring failed after upload, degrading to null analysis",
			"key", key,
			"error", err,
		)
		s.countUpload("degraded")
		s.finishUpload(ctx, key, fileName, contentType, int64(len(data)), nil)
		return resp, nil
	}

	analysis.Summary = summary.Normalize(analysis.Summary, analysis.Results, s.topLimit)
	if err := s.cache.WriteLatest(ctx, analysis.Summary); err != nil {
		log.Error("failed to write latest summary, degrading to null analysis",
			"key", key,
			"error", err,
		)
		s.countUpload("degraded")
		s.finishUpload(ctx, key, fileName, contentType, int64(len(data)), nil)
		return resp, nil
	}

	if s.metrics != nil {
		for _, r := range analysis.Results {
			s.metrics.ReviewsAnalyzedTotal.WithLabelValues(r.Label).Inc()
		}
	}
	s.countUpload("scored")
	s.finishUpload(ctx, key, fileName, contentType, int64(len(data)), analysis)

	resp.Analysis = analysis
	log.Info("file ingested",
		"key", key,
		"total_reviews", analysis.Summary.TotalReviews,
		"suspicious", analysis.Summary.Suspicious,
	)
	return resp, nil
}

// finishUpload records the metadata row and publishes the ingestion event.
// Both are best-effort: a failure is logged and never fails the request.
func (s *Service) finishUpload(ctx context.Context, key, fileName, contentType string, size int64, analysis *review.FileAnalysis) {
	artifact := review.UploadArtifact{
		StorageKey:   key,
		OriginalName: fileName,
		ContentType:  contentType,
		SizeBytes:    size,
		CreatedAt:    time.Now().UTC(),
	}
	event := ReviewIngestedEvent{
		StorageKey:   key,
		OriginalName: fileName,
		SizeBytes:    size,
		IngestedAt:   artifact.CreatedAt,
	}
	if analysis != nil {
		artifact.Scored = true
		artifact.TotalReviews = analysis.Summary.TotalReviews
		artifact.Suspicious = analysis.Summary.Suspicious
		event.Scored = true
		event.TotalReviews = analysis.Summary.TotalReviews
		event.Suspicious = analysis.Summary.Suspicious
		event.SuspiciousRate = analysis.Summary.SuspiciousRate
	}

	if s.uploads != nil {
		if err := s.uploads.Insert(ctx, artifact); err != nil {
			s.logger.Error("failed to record upload metadata", "key", key, "error", err)
		}
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, kafka.Event{Key: key, Value: event}); err != nil {
			s.logger.Error("failed to publish ingestion event", "key", key, "error", err)
		}
	}
}

func (s *Service) countUpload(outcome string) {
	if s.metrics != nil {
		s.metrics.UploadsTotal.WithLabelValues(outcome).Inc()
	}
}

// buildKey derives the blob key for an upload. The default is time-derived
// so same-named concurrent uploads never collide; with dedupe enabled the
// key is content-addressed and identical bytes overwrite the same object.
func (s *Service) buildKey(fileName string, data []byte) string {
	name := sanitizeFileName(fileName)
	if s.uploadsC.DedupeByContentHash {
		sum := sha256.Sum256(data)
		return fmt.Sprintf("%ssha256-%x_%s", s.uploadsC.KeyPrefix, sum[:16], name)
	}
	return fmt.Sprintf("%s%d_%s", s.uploadsC.KeyPrefix, time.Now().UnixMilli(), name)
}

func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return strings.ReplaceAll(name, " ", "_")
}
