// Package uploadrepo persists upload-artifact metadata rows in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE uploads (
//	    id            BIGSERIAL PRIMARY KEY,
//	    storage_key   TEXT NOT NULL UNIQUE,
//	    original_name TEXT NOT NULL,
//	    content_type  TEXT NOT NULL DEFAULT '',
//	    size_bytes    BIGINT NOT NULL,
//	    scored        BOOLEAN NOT NULL DEFAULT FALSE,
//	    total_reviews INT NOT NULL DEFAULT 0,
//	    suspicious    INT NOT NULL DEFAULT 0,
//	    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
package uploadrepo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reviewguard/reviewguard/internal/review"
	"github.com/reviewguard/reviewguard/pkg/postgres"
)

// Repo stores and lists upload artifacts.
type Repo struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a Repo over the given database.
func New(db *postgres.Client) *Repo {
	return &Repo{
		db:     db,
		logger: slog.Default().With("component", "upload-repo"),
	}
}

// Insert records one upload. Re-ingesting the same storage key (dedupe
// mode) updates the existing row instead of failing.
func (r *Repo) Insert(ctx context.Context, a review.UploadArtifact) error {
	_, err := r.db.DB.ExecContext(ctx,
		`INSERT INTO uploads (storage_key, original_name, content_type, size_bytes, scored, total_reviews, suspicious, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (storage_key) DO UPDATE SET
		     scored = EXCLUDED.scored,
		     total_reviews = EXCLUDED.total_reviews,
		     suspicious = EXCLUDED.suspicious,
		     created_at = EXCLUDED.created_at`,
		a.StorageKey, a.OriginalName, a.ContentType, a.SizeBytes,
		a.Scored, a.TotalReviews, a.Suspicious, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting upload %s: %w", a.StorageKey, err)
	}
	return nil
}

// List returns upload artifacts, newest first.
func (r *Repo) List(ctx context.Context, limit, offset int) ([]review.UploadArtifact, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT storage_key, original_name, content_type, size_bytes, scored, total_reviews, suspicious, created_at
		 FROM uploads ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}
	defer rows.Close()

	artifacts := make([]review.UploadArtifact, 0)
	for rows.Next() {
		var a review.UploadArtifact
		if err := rows.Scan(&a.StorageKey, &a.OriginalName, &a.ContentType, &a.SizeBytes,
			&a.Scored, &a.TotalReviews, &a.Suspicious, &a.CreatedAt); err != nil {
			r.logger.Error("failed to scan upload row", "error", err)
			continue
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating uploads: %w", err)
	}
	return artifacts, nil
}
