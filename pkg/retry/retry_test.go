package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		Attempts:   attempts,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2,
	}
}

func TestDo(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("Success After Retries", func(t *testing.T) {
		calls := 0
		var notified []int

		err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errBoom
			}
			return nil
		}, func(attempt int, err error, wait time.Duration) {
			notified = append(notified, attempt)
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, notified)
	})

	t.Run("Exhausted Attempts Return Last Error", func(t *testing.T) {
		calls := 0

		err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
			calls++
			return errBoom
		}, nil)

		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 3, calls)
	})

	t.Run("Permanent Error Stops Immediately", func(t *testing.T) {
		calls := 0

		err := fastPolicy(5).Do(context.Background(), func(ctx context.Context) error {
			calls++
			return Permanent(errBoom)
		}, nil)

		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, calls)
	})

	t.Run("Cancelled Context Stops Retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0

		err := fastPolicy(5).Do(ctx, func(ctx context.Context) error {
			calls++
			return errBoom
		}, nil)

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("Single Attempt", func(t *testing.T) {
		calls := 0

		err := fastPolicy(1).Do(context.Background(), func(ctx context.Context) error {
			calls++
			return errBoom
		}, nil)

		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, calls)
	})

	t.Run("Each Attempt Gets A Deadline", func(t *testing.T) {
		p := fastPolicy(1)
		p.Timeout = time.Second

		_ = p.Do(context.Background(), func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		}, nil)
	})
}
