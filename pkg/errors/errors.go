package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks bad client input; maps to 400.
	ErrValidation = errors.New("invalid input")
	// ErrUpstreamUnavailable marks a scoring-service call that failed or
	// timed out before producing a usable response.
	ErrUpstreamUnavailable = errors.New("scoring service unavailable")
	// ErrUpstreamProtocol marks a scoring-service response that could not
	// be interpreted. Treated like ErrUpstreamUnavailable at the HTTP edge.
	ErrUpstreamProtocol = errors.New("malformed scoring response")
	// ErrStorage marks a blob store put/get failure.
	ErrStorage = errors.New("storage error")
	// ErrObjectNotFound marks an absent blob-store key.
	ErrObjectNotFound = errors.New("object not found")
	// ErrSummaryAbsent is the expected state before any file has been
	// ingested; it is not a failure.
	ErrSummaryAbsent = errors.New("no summary ingested yet")
	// ErrTimeout marks an outbound operation that exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the response status. Upstream and storage
// failures collapse to 500 so that internals never leak to the client; the
// detail goes to the server-side log only.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUpstreamUnavailable),
		errors.Is(err, ErrUpstreamProtocol),
		errors.Is(err, ErrStorage),
		errors.Is(err, ErrTimeout):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
