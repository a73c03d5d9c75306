package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_Exclusive(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "tguser_1", time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, l.size())
}

func TestLocalLocker_Timeout(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "tguser_1", time.Second)
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(ctx, "tguser_1", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	t.Run("other names are independent", func(t *testing.T) {
		other, err := l.Acquire(ctx, "tguser_2", 20*time.Millisecond)
		require.NoError(t, err)
		other()
	})
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	l := NewLocalLocker()

	release, err := l.Acquire(context.Background(), "x", time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "x", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalLocker_ReleaseIsIdempotent(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "x", time.Second)
	require.NoError(t, err)
	release()
	release()

	again, err := l.Acquire(ctx, "x", 20*time.Millisecond)
	require.NoError(t, err)
	again()
}

func TestRedisLocker(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available for testing")
	}
	client.FlushDB(ctx)

	l := NewRedisLocker(client)

	release, err := l.Acquire(ctx, "tguser_1", time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "tguser_1", 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	release()

	again, err := l.Acquire(ctx, "tguser_1", 100*time.Millisecond)
	require.NoError(t, err)
	again()
}
