package storage

import (
	"context"
	"testing"

	"socialfeed/pkg/errs"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisFeedCache_AppendAndRange(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestRedis(t)
	cache := NewRedisFeedCache(client)

	require.NoError(t, cache.Append(ctx, 7, 100, 1000))
	require.NoError(t, cache.Append(ctx, 7, 101, 2000))
	require.NoError(t, cache.Append(ctx, 7, 102, 3000))

	ids, err := cache.Range(ctx, 7, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []int64{102, 101, 100}, ids)

	ids, err = cache.Range(ctx, 7, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{101}, ids)

	ids, err = cache.Range(ctx, 7, -1, -1)
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, ids)

	assert.True(t, mr.Exists("7:feed"))
}

func TestRedisFeedCache_AppendTwiceKeepsOneEntry(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestRedis(t)
	cache := NewRedisFeedCache(client)

	require.NoError(t, cache.Append(ctx, 7, 100, 1000))
	require.NoError(t, cache.Append(ctx, 7, 101, 2000))
	require.NoError(t, cache.Append(ctx, 7, 100, 3000))

	members, err := mr.ZMembers("7:feed")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	ids, err := cache.Range(ctx, 7, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 101}, ids)
}

func TestRedisFeedCache_EmptyFeed(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewRedisFeedCache(client)

	ids, err := cache.Range(context.Background(), 42, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisFeedCache_UnreachableRedis(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestRedis(t)
	cache := NewRedisFeedCache(client)
	mr.Close()

	err := cache.Append(ctx, 7, 100, 1000)
	assert.True(t, errors.Is(err, errs.ErrUpstreamUnavailable))

	_, err = cache.Range(ctx, 7, 0, -1)
	assert.True(t, errors.Is(err, errs.ErrUpstreamUnavailable))
}
