package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja-openai/mojito-sub000/internal/apperrors"
)

func TestPoolAcquireRelease(t *testing.T) {
	pool := NewPool(PoolConfig{MaxConcurrent: 2, MaxPending: 2, AcquireTimeout: time.Second})

	require.NoError(t, pool.Acquire(context.Background()))
	require.NoError(t, pool.Acquire(context.Background()))
	pool.Release()
	require.NoError(t, pool.Acquire(context.Background()))
	pool.Release()
	pool.Release()
}

func TestPoolExhaustedFailsImmediately(t *testing.T) {
	pool := NewPool(PoolConfig{MaxConcurrent: 1, MaxPending: 1, AcquireTimeout: time.Minute})

	require.NoError(t, pool.Acquire(context.Background()))

	// 占满等待队列
	blocked := make(chan error, 1)
	go func() {
		blocked <- pool.Acquire(context.Background())
	}()

	// 等待goroutine进入等待队列
	require.Eventually(t, func() bool { return pool.Pending() == 1 },
		time.Second, 5*time.Millisecond)

	// 队列已满：立即失败而不是排队
	start := time.Now()
	err := pool.Acquire(context.Background())
	require.ErrorIs(t, err, apperrors.ErrPoolExhausted)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	pool.Release()
	require.NoError(t, <-blocked)
	pool.Release()
}

func TestPoolAcquireTimeout(t *testing.T) {
	pool := NewPool(PoolConfig{MaxConcurrent: 1, MaxPending: 4, AcquireTimeout: 20 * time.Millisecond})

	require.NoError(t, pool.Acquire(context.Background()))
	defer pool.Release()

	err := pool.Acquire(context.Background())
	require.ErrorIs(t, err, apperrors.ErrAcquireTimeout)
	assert.Equal(t, 0, pool.Pending())
}

func TestPoolAcquireCancelled(t *testing.T) {
	pool := NewPool(PoolConfig{MaxConcurrent: 1, MaxPending: 4, AcquireTimeout: time.Minute})

	require.NoError(t, pool.Acquire(context.Background()))
	defer pool.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := pool.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
