package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/reviewguard/reviewguard/internal/ingest"
	"github.com/reviewguard/reviewguard/internal/review"
	"github.com/reviewguard/reviewguard/internal/review/validator"
	"github.com/reviewguard/reviewguard/internal/summary"
	apperrors "github.com/reviewguard/reviewguard/pkg/errors"
	"github.com/reviewguard/reviewguard/pkg/logger"
)

// UploadLister serves the upload-history endpoint.
type UploadLister interface {
	List(ctx context.Context, limit, offset int) ([]review.UploadArtifact, error)
}

// Handler implements the service's HTTP endpoints.
type Handler struct {
	ingest      *ingest.Service
	cache       *summary.Cache
	uploads     UploadLister // nil when Postgres is not configured
	maxFileSize int64
	logger      *slog.Logger
}

// New creates a Handler.
func New(svc *ingest.Service, cache *summary.Cache, uploads UploadLister, maxFileSize int64) *Handler {
	return &Handler{
		ingest:      svc,
		cache:       cache,
		uploads:     uploads,
		maxFileSize: maxFileSize,
		logger:      slog.Default().With("component", "http-handler"),
	}
}

// AnalyzeReviews handles POST /api/reviews/analyze.
func (h *Handler) AnalyzeReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req review.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	results, err := h.ingest.AnalyzeReviews(ctx, req.Reviews)
	if err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("analyze failed",
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "failed to analyze reviews")
		return
	}
	h.writeJSON(w, http.StatusOK, review.AnalyzeResponse{Results: results})
}

// UploadFile handles POST /api/uploads/file (multipart, field "file").
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error("failed to read upload", "error", err)
		h.writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	resp, err := h.ingest.AnalyzeFile(ctx, data, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("file ingestion failed",
			"file", header.Filename,
			"error", err,
			"status_code", statusCode,
		)
		if statusCode == http.StatusBadRequest {
			h.writeError(w, statusCode, err.Error())
		} else {
			h.writeError(w, statusCode, "failed to process upload")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// LatestSummary handles GET /api/summary/latest. Absence and read failure
// both answer 200 with ok:false so the polling dashboard can render a
// "no data yet" state and simply try again next interval.
func (h *Handler) LatestSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.cache.ReadLatest(ctx)
	if err != nil {
		if !errors.Is(err, apperrors.ErrSummaryAbsent) {
			logger.FromContext(ctx).Error("failed to read latest summary", "error", err)
		}
		h.writeJSON(w, http.StatusOK, review.LatestSummaryResponse{Ok: false, Summary: nil})
		return
	}
	h.writeJSON(w, http.StatusOK, review.LatestSummaryResponse{Ok: true, Summary: s})
}

// ListUploads handles GET /api/uploads.
func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	if h.uploads == nil {
		h.writeError(w, http.StatusNotFound, "upload history not available")
		return
	}
	limit := 20
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	artifacts, err := h.uploads.List(r.Context(), limit, offset)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list uploads", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list uploads")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"uploads": artifacts,
		"count":   len(artifacts),
		"limit":   limit,
		"offset":  offset,
	})
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
