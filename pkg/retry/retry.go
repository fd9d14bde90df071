package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/tipstream/tip_service/internal/domain/errors"
)

// Do runs operation until it succeeds, returns an error the policy does not
// retry, or the retries are spent. Waits between attempts honour ctx.
func Do(ctx context.Context, policy Policy, logger *zap.Logger, operation func() error) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("invalid retry policy: %w", err)
	}
	retryable := policy.RetryableFunc
	if retryable == nil {
		retryable = apperrors.ShouldRetry
	}
	backoff := NewBackoff(policy)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		switch {
		case err == nil:
			if attempt > 0 {
				logger.Info("Operation succeeded after retries", zap.Int("attempt", attempt))
			}
			return nil
		case !retryable(err):
			return err
		case attempt >= policy.MaxRetries:
			logger.Warn("Max retries exceeded",
				zap.Error(err),
				zap.Int("attempts", attempt+1))
			return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
		}

		delay := backoff.Calculate(attempt + 1)
		logger.Debug("Retrying operation",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
