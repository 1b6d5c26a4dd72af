package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"vein-assessment/internal/platform/logger"
)

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("analysis http %d: %s", e.StatusCode, e.Body)
}

func isRetryable(err error) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusRequestTimeout ||
			he.StatusCode == http.StatusTooManyRequests ||
			he.StatusCode >= 500
	}
	return false
}

// withRetry runs fn until it succeeds, fails permanently, or the retries run
// out. Backoff doubles from one second and respects ctx.
func withRetry(ctx context.Context, log *logger.Logger, name string, maxRetries int, fn func() error) error {
	backoff := time.Second
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil || !isRetryable(err) || attempt >= maxRetries {
			return err
		}
		log.Warn("Analysis request retrying",
			"analyzer", name,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"sleep", backoff.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
