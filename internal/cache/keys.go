package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func JobResultKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s:result", jobID)
}

func RateLimitKey(identity string) string {
	return fmt.Sprintf("ratelimit:%s", identity)
}
