package app

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

const (
	defaultMaxAttempts    = 8
	defaultBackoffInitial = 5 * time.Millisecond
	defaultBackoffMax     = 100 * time.Millisecond
)

type retryPolicy struct {
	maxAttempts int
	initial     time.Duration
	max         time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts: defaultMaxAttempts,
		initial:     defaultBackoffInitial,
		max:         defaultBackoffMax,
	}
}

// run calls attempt until it returns anything other than domain.ErrVersionMismatch.
// It reports how many attempts were made. Running out of attempts yields
// domain.ErrContention.
func (p retryPolicy) run(ctx context.Context, attempt func(ctx context.Context) error) (int, error) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.initial,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         p.max,
	}
	b.Reset()

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return n - 1, err
		}

		err := attempt(ctx)
		if !errors.Is(err, domain.ErrVersionMismatch) {
			return n, err
		}
		if n >= p.maxAttempts {
			return n, domain.ErrContention
		}

		wait := b.NextBackOff()
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, ctx.Err()
		case <-timer.C:
		}
	}
}
