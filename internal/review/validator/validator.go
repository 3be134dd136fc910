// Package validator provides input validation for analyze requests. It
// enforces that the reviews array is present, non-empty, and contains no
// blank entries, returning per-field error details.
package validator

import (
	"fmt"
	"strings"

	"github.com/reviewguard/reviewguard/internal/review"
)

const (
	maxBatchSize    = 1000
	maxReviewLength = 65536
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateAnalyzeRequest checks that the reviews field is a non-empty array
// of non-blank texts within size limits.
func ValidateAnalyzeRequest(req *review.AnalyzeRequest) error {
	errs := make(map[string]string)

	if len(req.Reviews) == 0 {
		errs["reviews"] = "field 'reviews' must be a non-empty array"
	} else if len(req.Reviews) > maxBatchSize {
		errs["reviews"] = fmt.Sprintf("at most %d reviews per request", maxBatchSize)
	} else {
		for i, text := range req.Reviews {
			if strings.TrimSpace(text) == "" {
				errs["reviews"] = fmt.Sprintf("review at index %d is empty", i)
				break
			}
			if len(text) > maxReviewLength {
				errs["reviews"] = fmt.Sprintf("review at index %d exceeds %d characters", i, maxReviewLength)
				break
			}
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateSingle checks one review text; used by callers that analyze a
// single submission through the batch path.
func ValidateSingle(text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Fields: map[string]string{"text": "text must not be empty"}}
	}
	if len(text) > maxReviewLength {
		return &ValidationError{Fields: map[string]string{"text": fmt.Sprintf("text exceeds %d characters", maxReviewLength)}}
	}
	return nil
}
