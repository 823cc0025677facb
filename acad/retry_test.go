package acad

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond, Jitter: time.Millisecond}
}

func TestRetry_BusyThenSuccess(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), testPolicy(3), func() (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("%w: call rejected", ErrBusy)
		}
		return "done", nil
	})
	assert.Nil(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 3, calls)
}

func TestRetry_Exhaustion(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), testPolicy(2), func() (string, error) {
		calls++
		return "", fmt.Errorf("%w: call rejected", ErrBusy)
	})
	assert.True(t, IsBusy(err))
	assert.Equal(t, 2, calls, "no third attempt after MaxAttempts=2")
}

func TestRetry_NonBusyPropagatesImmediately(t *testing.T) {
	boom := errors.New("malformed input")
	calls := 0
	_, err := Retry(context.Background(), testPolicy(5), func() (string, error) {
		calls++
		return "", boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_DisconnectedNotRetried(t *testing.T) {
	calls := 0
	err := RetryCall(context.Background(), testPolicy(5), func() error {
		calls++
		return fmt.Errorf("%w: handle stale", ErrDisconnected)
	})
	assert.True(t, IsDisconnected(err))
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, testPolicy(5), func() (int, error) {
		return 0, fmt.Errorf("%w: call rejected", ErrBusy)
	})
	assert.Equal(t, context.Canceled, err)
}
