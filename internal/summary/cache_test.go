package summary

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/reviewguard/reviewguard/internal/review"
	"github.com/reviewguard/reviewguard/internal/storage"
	apperrors "github.com/reviewguard/reviewguard/pkg/errors"
)

func floatPtr(f float64) *float64 { return &f }

func TestReadLatestBeforeAnyWrite(t *testing.T) {
	cache := NewCache(storage.NewMemoryStore())

	_, err := cache.ReadLatest(context.Background())
	if !errors.Is(err, apperrors.ErrSummaryAbsent) {
		t.Fatalf("error = %v, want ErrSummaryAbsent", err)
	}
}

func TestWriteThenRead(t *testing.T) {
	cache := NewCache(storage.NewMemoryStore())
	ctx := context.Background()

	in := Normalize(review.Summary{
		TotalReviews: 10,
		Suspicious:   3,
		AvgSentiment: 0.12,
	}, nil, 5)
	if err := cache.WriteLatest(ctx, in); err != nil {
		t.Fatalf("WriteLatest: %v", err)
	}

	out, err := cache.ReadLatest(ctx)
	if err != nil {
		t.Fatalf("ReadLatest: %v", err)
	}
	if out.TotalReviews != 10 || out.Suspicious != 3 {
		t.Errorf("read back %d/%d, want 10/3", out.TotalReviews, out.Suspicious)
	}
	want := float64(out.Suspicious) / float64(out.TotalReviews)
	if math.Abs(out.SuspiciousRate-want) > 1e-9 {
		t.Errorf("suspicious_rate = %v, want %v (recomputed)", out.SuspiciousRate, want)
	}
}

func TestLastWriteWins(t *testing.T) {
	blobs := storage.NewMemoryStore()
	cache := NewCache(blobs)
	ctx := context.Background()

	a := Normalize(review.Summary{TotalReviews: 4, Suspicious: 1, AvgSentiment: 0.5}, nil, 5)
	b := Normalize(review.Summary{TotalReviews: 20, Suspicious: 10, AvgSentiment: -0.3}, nil, 5)

	if err := cache.WriteLatest(ctx, a); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := cache.WriteLatest(ctx, b); err != nil {
		t.Fatalf("write b: %v", err)
	}

	out, err := cache.ReadLatest(ctx)
	if err != nil {
		t.Fatalf("ReadLatest: %v", err)
	}
	// The slot must hold exactly B's document, never a blend of A and B.
	if out.TotalReviews != 20 || out.Suspicious != 10 || out.AvgSentiment != -0.3 {
		t.Errorf("slot holds %+v, want exactly the second write", out)
	}
	if out.SuspiciousRate != 0.5 {
		t.Errorf("suspicious_rate = %v, want 0.5", out.SuspiciousRate)
	}
}

func TestWrittenDocumentIsSelfDescribing(t *testing.T) {
	blobs := storage.NewMemoryStore()
	cache := NewCache(blobs)
	ctx := context.Background()

	if err := cache.WriteLatest(ctx, Normalize(review.Summary{TotalReviews: 2, Suspicious: 1}, nil, 5)); err != nil {
		t.Fatalf("WriteLatest: %v", err)
	}
	raw, err := blobs.Get(ctx, SlotKey)
	if err != nil {
		t.Fatalf("slot not written: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("slot is not JSON: %v", err)
	}
	for _, field := range []string{"total_reviews", "suspicious", "suspicious_rate", "avg_sentiment"} {
		if _, ok := doc[field]; !ok {
			t.Errorf("slot document missing %q", field)
		}
	}
	if blobs.ContentType(SlotKey) != "application/json" {
		t.Errorf("content type = %q", blobs.ContentType(SlotKey))
	}
}

func TestNormalizeTopFlagged(t *testing.T) {
	results := []review.ScoredReview{
		{Text: "fine", Label: review.LabelGenuine, Probability: floatPtr(0.9)},
		{Text: "low", Label: review.LabelSuspicious, Probability: floatPtr(0.55)},
		{Text: "high", Label: review.LabelSuspicious, Probability: floatPtr(0.99)},
		{Text: "mid", Label: review.LabelSuspicious, Probability: floatPtr(0.7)},
		{Text: "no-prob", Label: review.LabelSuspicious, Probability: nil},
	}

	s := Normalize(review.Summary{TotalReviews: 5, Suspicious: 4}, results, 3)

	if len(s.TopFlagged) != 3 {
		t.Fatalf("top_flagged length = %d, want 3 (capped)", len(s.TopFlagged))
	}
	wantOrder := []string{"high", "mid", "low"}
	for i, want := range wantOrder {
		if s.TopFlagged[i].Text != want {
			t.Errorf("top_flagged[%d] = %q, want %q", i, s.TopFlagged[i].Text, want)
		}
	}
	if s.SuspiciousRate != 0.8 {
		t.Errorf("suspicious_rate = %v, want 0.8", s.SuspiciousRate)
	}
}

func TestNormalizeZeroTotal(t *testing.T) {
	s := Normalize(review.Summary{TotalReviews: 0, Suspicious: 0}, nil, 5)
	if s.SuspiciousRate != 0 {
		t.Errorf("suspicious_rate = %v, want 0 for empty batch", s.SuspiciousRate)
	}
}
