// Package server wires up the review-guardian HTTP API and applies the
// middleware chain (RequestID → CORS → Metrics → Timeout).
package server

import (
	"net/http"
	"time"

	"github.com/reviewguard/reviewguard/pkg/health"
	"github.com/reviewguard/reviewguard/pkg/metrics"
	"github.com/reviewguard/reviewguard/pkg/middleware"
)

// NewRouter builds the full HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST   /api/reviews/analyze   → score a batch of review texts
//	POST   /api/uploads/file      → upload a CSV for file-level analysis
//	GET    /api/summary/latest    → latest summary snapshot (always 200)
//	GET    /api/uploads           → upload history
//	GET    /api/health            → liveness
//	GET    /readyz                → dependency readiness
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → Timeout → handler
func NewRouter(h *Handler, checker *health.Checker, m *metrics.Metrics, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	// Health (unauthenticated)
	mux.HandleFunc("GET /api/health", h.Health)
	if checker != nil {
		mux.HandleFunc("GET /readyz", checker.ReadyHandler())
	}

	// Review API
	mux.HandleFunc("POST /api/reviews/analyze", h.AnalyzeReviews)

	// Upload API
	mux.HandleFunc("POST /api/uploads/file", h.UploadFile)
	mux.HandleFunc("GET /api/uploads", h.ListUploads)

	// Summary API
	mux.HandleFunc("GET /api/summary/latest", h.LatestSummary)

	// Middleware chain — applied inside-out:
	// request → RequestID → CORS → Metrics → Timeout → mux
	var chain http.Handler = mux
	if requestTimeout > 0 {
		chain = middleware.Timeout(requestTimeout)(chain)
	}
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	return chain
}
