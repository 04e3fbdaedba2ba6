package inference

import "errors"

var (
	ErrRateLimited       = errors.New("upstream rate limit exceeded")
	ErrQuotaExceeded     = errors.New("upstream quota exhausted")
	ErrMalformedResponse = errors.New("upstream returned unparseable response")
)
