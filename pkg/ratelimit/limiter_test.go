package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestLimiterBlocksAfterLimit(t *testing.T) {
	_, client := newMiniRedisClient(t)
	l := New(client, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, retry, err := l.Allow(ctx, "user:7")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Zero(t, retry)
	}

	allowed, retry, err := l.Allow(ctx, "user:7")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(60), retry)

	allowed, _, err = l.Allow(ctx, "user:8")
	require.NoError(t, err)
	assert.True(t, allowed, "keys are counted separately")
}

func TestLimiterWindowResets(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	l := New(client, 1, 10*time.Second)
	ctx := context.Background()

	allowed, _, err := l.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = l.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	require.False(t, allowed)

	mr.FastForward(11 * time.Second)

	allowed, _, err = l.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiterDisabled(t *testing.T) {
	l := New(nil, 1, time.Minute)
	assert.False(t, l.Enabled())

	for i := 0; i < 5; i++ {
		allowed, _, err := l.Allow(context.Background(), "user:7")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	assert.Nil(t, NewRedisClient("", "", 0))
}
