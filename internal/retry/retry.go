// Package retry provides the shared error classification and bounded
// exponential-backoff retry used on read paths (price fetches, journal
// reads). Order placement is never routed through here: replaying a write
// risks duplicate fills.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/copybotio/copybot/internal/domain"
)

// DefaultAttempts bounds the total tries (first attempt plus retries).
const DefaultAttempts = 3

// DefaultInitialInterval is the first backoff delay.
const DefaultInitialInterval = 100 * time.Millisecond

// Transient reports whether the error is worth retrying: rate limits,
// unavailable prices, and network timeouts. Validation failures and order
// rejections are permanent by definition.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrUnknownMarket) ||
		errors.Is(err, domain.ErrOrderRejected) ||
		errors.Is(err, domain.ErrNotFound) {
		return false
	}
	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrPriceUnavailable) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// Do runs op, retrying transient failures with exponential backoff until the
// attempt budget is spent or ctx is cancelled. Permanent errors are returned
// immediately. attempts <= 0 falls back to DefaultAttempts.
func Do(ctx context.Context, attempts int, op func() error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = DefaultInitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
