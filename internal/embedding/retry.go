package embedding

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"emergency-rag/internal/models"
)

// withRetry runs attempt with a per-attempt timeout and exponential
// backoff with jitter between attempts. Context cancellation and input
// errors are returned as-is; exhausting the retry budget wraps the last
// error in models.ErrEmbeddingUnavailable so callers can map it to a
// service-unavailable condition.
func withRetry(ctx context.Context, maxRetries int, attempt func(ctx context.Context) error, timeout time.Duration) error {
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			base := time.Duration(i*i) * time.Second
			jitter := time.Duration(rand.Int64N(int64(base/2 + 1)))
			backoff := base + jitter
			log.Warn().Int("attempt", i+1).Dur("backoff", backoff).Err(lastErr).
				Msg("Retrying embedding call")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := attempt(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}

	return fmt.Errorf("%w: after %d attempts: %v", models.ErrEmbeddingUnavailable, maxRetries+1, lastErr)
}

// IsUnavailable reports whether err is the retry-exhaustion condition.
func IsUnavailable(err error) bool {
	return errors.Is(err, models.ErrEmbeddingUnavailable)
}
