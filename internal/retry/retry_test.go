package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, 0, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExactAttemptBudget(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, 0, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Equal(t, 3, calls, "must try exactly the budget, not more, not fewer")
}

func TestDo_EventualSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 5, 0, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("already exists")
	err := Do(context.Background(), 5, 0, func(ctx context.Context) error {
		calls++
		return Stop(sentinel)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls, "permanent errors must not consume the budget")
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, 3, time.Millisecond, func(ctx context.Context) error {
		return errors.New("never reached on cancelled context")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), 0, 0, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	assert.Equal(t, 1, calls)
}

func TestPoll_ConditionBecomesTrue(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Second, time.Millisecond, func(ctx context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 3)
}

func TestPoll_Timeout(t *testing.T) {
	err := Poll(context.Background(), 20*time.Millisecond, 5*time.Millisecond, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoll_ConditionError(t *testing.T) {
	sentinel := errors.New("probe failed")
	err := Poll(context.Background(), time.Second, time.Millisecond, func(ctx context.Context) (bool, error) {
		return false, sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}
