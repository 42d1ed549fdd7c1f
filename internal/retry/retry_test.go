package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/copybotio/copybot/internal/domain"
)

func TestTransient_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", fmt.Errorf("%w: bad amount", domain.ErrValidation), false},
		{"unknown market", domain.ErrUnknownMarket, false},
		{"order rejected", fmt.Errorf("venue: %w", domain.ErrOrderRejected), false},
		{"not found", domain.ErrNotFound, false},
		{"rate limited", domain.ErrRateLimited, true},
		{"price unavailable", fmt.Errorf("fetch: %w", domain.ErrPriceUnavailable), true},
		{"deadline", context.DeadlineExceeded, true},
		{"unknown error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, func() error {
		calls++
		if calls < 3 {
			return domain.ErrPriceUnavailable
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 5, func() error {
		calls++
		return fmt.Errorf("%w: empty market_id", domain.ErrValidation)
	})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 1, calls)
}

func TestDo_BoundedAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, func() error {
		calls++
		return domain.ErrRateLimited
	})

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 3, calls)
}

func TestDo_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, 5, func() error {
		calls++
		return domain.ErrRateLimited
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}
