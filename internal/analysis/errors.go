package analysis

import (
	"context"
	"errors"

	"github.com/varunv-ux/getglow/internal/imageproc"
	"github.com/varunv-ux/getglow/internal/inference"
	"github.com/varunv-ux/getglow/internal/store"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
)

// Stable machine-readable codes for job failures and API error responses.
const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeRateLimited       = "RATE_LIMITED"
	CodeQuotaExceeded     = "QUOTA_EXCEEDED"
	CodeTimeout           = "TIMEOUT"
	CodeUnknown           = "UNKNOWN"
)

// ErrorDescriptor is the failure payload persisted on a failed job and
// returned to clients.
type ErrorDescriptor struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode classifies an error into one of the stable codes above.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, imageproc.ErrUnsupportedFormat),
		errors.Is(err, imageproc.ErrTooLarge):
		return CodeInvalidInput
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, inference.ErrMalformedResponse):
		return CodeMalformedResponse
	case errors.Is(err, inference.ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, inference.ErrQuotaExceeded):
		return CodeQuotaExceeded
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodeUnknown
	}
}
