package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/reviewguard/reviewguard/internal/review"
)

func TestValidateAnalyzeRequest(t *testing.T) {
	tests := []struct {
		name    string
		reviews []string
		wantErr bool
	}{
		{"nil array", nil, true},
		{"empty array", []string{}, true},
		{"blank entry", []string{"fine", "   "}, true},
		{"single valid", []string{"Great product, fast shipping!"}, false},
		{"many valid", []string{"a good one", "a bad one"}, false},
		{"oversized entry", []string{strings.Repeat("x", 65537)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAnalyzeRequest(&review.AnalyzeRequest{Reviews: tt.reviews})
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAnalyzeRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Errorf("error is not a *ValidationError: %T", err)
				} else if len(vErr.Fields) == 0 {
					t.Error("ValidationError has no field details")
				}
			}
		})
	}
}

func TestValidateSingle(t *testing.T) {
	if err := ValidateSingle(""); err == nil {
		t.Error("empty text should fail validation")
	}
	if err := ValidateSingle("   "); err == nil {
		t.Error("whitespace-only text should fail validation")
	}
	if err := ValidateSingle("legit review"); err != nil {
		t.Errorf("valid text rejected: %v", err)
	}
}
