package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketly/internal/shared/apperrors"
)

func freezeJitter(t *testing.T, f float64) {
	t.Helper()
	orig := randFactor
	randFactor = func() float64 { return f }
	t.Cleanup(func() { randFactor = orig })
}

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func TestDoRetriesConcurrencyErrors(t *testing.T) {
	freezeJitter(t, 1.0)

	attempts := 0
	err := Do(context.Background(), fastPolicy(), "create booking", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return apperrors.Concurrency(apperrors.CodeStaleVersion, "version conflict")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnBusinessError(t *testing.T) {
	attempts := 0
	want := apperrors.Inventory(apperrors.CodeInsufficientSeats, "only 1 ticket left")

	err := Do(context.Background(), fastPolicy(), "create booking", func(ctx context.Context) error {
		attempts++
		return want
	})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, apperrors.KindInventory, apperrors.KindOf(err))
}

func TestDoSurfacesLastErrorAfterExhaustion(t *testing.T) {
	freezeJitter(t, 0.5)

	attempts := 0
	err := Do(context.Background(), fastPolicy(), "create booking", func(ctx context.Context) error {
		attempts++
		return apperrors.Concurrency(apperrors.CodeStaleVersion, "still conflicting")
	})

	assert.Equal(t, 3, attempts)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeStaleVersion, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestDoObservesCancellation(t *testing.T) {
	freezeJitter(t, 1.0)

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Do(ctx, Policy{MaxAttempts: 3, BaseDelay: time.Hour}, "create booking", func(ctx context.Context) error {
		attempts++
		cancel()
		return apperrors.Concurrency(apperrors.CodeStaleVersion, "conflict")
	})

	assert.Equal(t, 1, attempts)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDelayGrowsExponentiallyAndCaps(t *testing.T) {
	freezeJitter(t, 1.0)

	p := Policy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, 800*time.Millisecond, p.Delay(4))
	assert.Equal(t, time.Second, p.Delay(5))
}

func TestDelayJitterRange(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	for i := 0; i < 100; i++ {
		d := p.Delay(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestDoDoesNotRetryPlainErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(), "confirm booking", func(ctx context.Context) error {
		attempts++
		return errors.New("unexpected")
	})

	assert.Equal(t, 1, attempts)
	assert.Error(t, err)
}
