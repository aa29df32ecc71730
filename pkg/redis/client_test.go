package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withServer(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("skip: miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)
	SetClient(redisv9.NewClient(&redisv9.Options{Addr: srv.Addr()}))
	return srv
}

func TestInit_BadURL(t *testing.T) {
	assert.Error(t, Init("not-a-redis-url", ""))
}

func TestSetGetDel(t *testing.T) {
	withServer(t)
	ctx := context.Background()

	require.NoError(t, Set(ctx, "k", "v", time.Minute))

	got, err := Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, Del(ctx, "k"))
	_, err = Get(ctx, "k")
	assert.Error(t, err)
}

func TestSetNX(t *testing.T) {
	withServer(t)
	ctx := context.Background()

	ok, err := SetNX(ctx, "lock", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = SetNX(ctx, "lock", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a held key must not be overwritten")

	got, err := Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestSetNX_ExpiresAndFreesKey(t *testing.T) {
	srv := withServer(t)
	ctx := context.Background()

	ok, err := SetNX(ctx, "lock", "a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(2 * time.Second)

	ok, err = SetNX(ctx, "lock", "b", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "an expired key is free to take")
}
