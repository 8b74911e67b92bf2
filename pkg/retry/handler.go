package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rohmanhakim/parkfetch/pkg/failure"
	"github.com/rohmanhakim/parkfetch/pkg/timeutil"
)

// Retry executes fn up to MaxAttempts times, applying exponential backoff
// with jitter between attempts. Only errors reporting IsRetryable() == true
// trigger another attempt; anything else is returned as-is.
//
// The returned int is the number of attempts actually made.
func Retry[T any](
	ctx context.Context,
	retryParam RetryParam,
	fn func() (T, failure.ClassifiedError),
) (T, int, failure.ClassifiedError) {
	var zero T
	var lastErr failure.ClassifiedError

	if retryParam.MaxAttempts < 1 {
		return zero, 0, &RetryError{
			Message:   "max attempt cannot be 0",
			Cause:     ErrZeroAttempt,
			Retryable: false,
		}
	}

	rng := rand.New(rand.NewSource(retryParam.RandomSeed))

	attempt := 1
	for ; attempt <= retryParam.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		if !isErrorRetryable(err) {
			return zero, attempt, err
		}

		if attempt == retryParam.MaxAttempts {
			break
		}

		delay := timeutil.ExponentialBackoffDelay(
			attempt,
			retryParam.Jitter,
			rng,
			retryParam.BackoffParam,
		)
		select {
		case <-ctx.Done():
			return zero, attempt, &RetryError{
				Message:   ctx.Err().Error(),
				Cause:     ErrCanceled,
				Retryable: false,
				Attempts:  attempt,
				LastErr:   lastErr,
			}
		case <-time.After(delay):
		}
	}

	if retryParam.MaxAttempts == 1 {
		// nothing was retried, keep the original classification
		return zero, 1, lastErr
	}

	return zero, retryParam.MaxAttempts, &RetryError{
		Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
		Cause:     ErrExhaustedAttempts,
		Retryable: true,
		Attempts:  retryParam.MaxAttempts,
		LastErr:   lastErr,
	}
}

func isErrorRetryable(err failure.ClassifiedError) bool {
	type hasRetryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(hasRetryable); ok {
		return r.IsRetryable()
	}
	return err.Severity() == failure.SeverityRecoverable
}
