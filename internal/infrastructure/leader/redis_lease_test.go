package leader

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLease(t *testing.T, ttl time.Duration) (*RedisPassLease, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisPassLease(client, "", ttl), mr
}

func TestRedisPassLease(t *testing.T) {
	lease, mr := newLease(t, time.Minute)
	ctx := context.Background()

	ok, err := lease.Acquire(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lease.Acquire(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	// holder renews
	mr.FastForward(50 * time.Second)
	ok, err = lease.Acquire(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	mr.FastForward(50 * time.Second)
	holder, err := lease.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", holder)

	// only the holder releases
	require.NoError(t, lease.Release(ctx, "b"))
	assert.True(t, mr.Exists(DefaultLeaseKey))
	require.NoError(t, lease.Release(ctx, "a"))
	assert.False(t, mr.Exists(DefaultLeaseKey))

	ok, err = lease.Acquire(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisPassLeaseExpires(t *testing.T) {
	lease, mr := newLease(t, time.Minute)
	ctx := context.Background()

	ok, err := lease.Acquire(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(61 * time.Second)
	holder, err := lease.Holder(ctx)
	require.NoError(t, err)
	assert.Empty(t, holder)

	ok, err = lease.Acquire(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisPassLeaseContention(t *testing.T) {
	lease, mr := newLease(t, time.Minute)
	ctx := context.Background()

	holders := []string{"lifecycled_a", "lifecycled_b", "lifecycled_c"}
	results := make(chan string, len(holders))
	for _, id := range holders {
		id := id
		go func() {
			ok, err := lease.Acquire(ctx, id)
			if err == nil && ok {
				results <- id
				return
			}
			results <- ""
		}()
	}

	var winners []string
	for range holders {
		if id := <-results; id != "" {
			winners = append(winners, id)
		}
	}
	require.Len(t, winners, 1)

	holder, err := lease.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, winners[0], holder)

	// losers cannot release the winner's lease
	for _, id := range holders {
		if id != winners[0] {
			require.NoError(t, lease.Release(ctx, id))
		}
	}
	assert.True(t, mr.Exists(DefaultLeaseKey))
}
