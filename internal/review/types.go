// Package review defines the wire types shared by the ingestion pipeline:
// scored reviews, batch summaries, and the HTTP request/response shapes.
package review

import "time"

// Labels assigned by the classifier.
const (
	LabelGenuine    = "genuine"
	LabelSuspicious = "suspicious"
)

// ScoredReview is one classified review as returned by the scoring service.
// Probability is nil when the classifier ran in fallback mode without a
// trained model.
type ScoredReview struct {
	Text        string   `json:"text"`
	Label       string   `json:"label"`
	Sentiment   float64  `json:"sentiment"`
	Probability *float64 `json:"probability"`
	Keywords    []string `json:"keywords"`
}

// Summary aggregates one scored batch. SuspiciousRate is always recomputed
// from Suspicious/TotalReviews before the document is persisted, never
// trusted from upstream.
type Summary struct {
	TotalReviews   int            `json:"total_reviews"`
	Suspicious     int            `json:"suspicious"`
	SuspiciousRate float64        `json:"suspicious_rate"`
	AvgSentiment   float64        `json:"avg_sentiment"`
	TopFlagged     []ScoredReview `json:"top_flagged,omitempty"`
}

// FileAnalysis is the scoring service's response for an uploaded file.
type FileAnalysis struct {
	Results []ScoredReview `json:"results"`
	Summary Summary        `json:"summary"`
}

// UploadArtifact is the metadata record kept for every raw upload persisted
// to the blob store. The object itself is retained indefinitely.
type UploadArtifact struct {
	StorageKey   string    `json:"storage_key"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Scored       bool      `json:"scored"`
	TotalReviews int       `json:"total_reviews"`
	Suspicious   int       `json:"suspicious"`
	CreatedAt    time.Time `json:"created_at"`
}

// AnalyzeRequest is the JSON body accepted by POST /api/reviews/analyze.
type AnalyzeRequest struct {
	Reviews []string `json:"reviews"`
}

// AnalyzeResponse carries one ScoredReview per submitted text, in order.
type AnalyzeResponse struct {
	Results []ScoredReview `json:"results"`
}

// UploadResponse is returned by POST /api/uploads/file. Analysis is null
// when scoring failed after the file was stored; the upload itself still
// succeeded.
type UploadResponse struct {
	Message  string        `json:"message"`
	S3Key    string        `json:"s3Key"`
	Analysis *FileAnalysis `json:"analysis"`
}

// LatestSummaryResponse is returned by GET /api/summary/latest. Ok is false
// both before any ingestion and on read failure; the dashboard renders a
// "no data yet" state either way.
type LatestSummaryResponse struct {
	Ok      bool     `json:"ok"`
	Summary *Summary `json:"summary"`
}
