package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiter_Bounds(t *testing.T) {
	_, err := NewLimiter(0)
	require.Error(t, err)

	_, err = NewLimiter(MaxPermits + 1)
	require.Error(t, err)

	l, err := NewLimiter(5)
	require.NoError(t, err)
	assert.Equal(t, 5, l.Size())
}

func TestLimiter_BoundsConcurrency(t *testing.T) {
	const permits = 4
	const tasks = 40

	l, err := NewLimiter(permits)
	require.NoError(t, err)

	var inFlight atomic.Int32
	var maxSeen atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Acquire(context.Background()))
			defer l.Release()

			n := inFlight.Add(1)
			for {
				prev := maxSeen.Load()
				if n <= prev || maxSeen.CompareAndSwap(prev, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, maxSeen.Load(), int32(permits))
	assert.Zero(t, l.InFlight())
}

func TestLimiter_AcquireHonorsContext(t *testing.T) {
	l, err := NewLimiter(1)
	require.NoError(t, err)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err = l.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	l.Release()
}

func TestLimiter_ReleaseWithoutAcquirePanics(t *testing.T) {
	l, err := NewLimiter(1)
	require.NoError(t, err)
	assert.Panics(t, func() { l.Release() })
}
