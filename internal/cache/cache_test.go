package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string `json:"name"`
}

func withMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestAside(t *testing.T) {
	t.Run("miss loads then hit skips load", func(t *testing.T) {
		mr := withMiniRedis(t)
		ctx := context.Background()
		calls := 0

		var first payload
		err := Aside(ctx, "k", &first, time.Minute, func() error {
			calls++
			first = payload{Name: "Сутність"}
			return nil
		})
		require.NoError(t, err)
		assert.True(t, mr.Exists("k"))

		var second payload
		err = Aside(ctx, "k", &second, time.Minute, func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, "Сутність", second.Name)
	})

	t.Run("load error is returned and not cached", func(t *testing.T) {
		mr := withMiniRedis(t)
		var dest payload
		err := Aside(context.Background(), "bad", &dest, time.Minute, func() error {
			return errors.New("db down")
		})
		assert.EqualError(t, err, "db down")
		assert.False(t, mr.Exists("bad"))
	})

	t.Run("corrupt entry is reloaded", func(t *testing.T) {
		mr := withMiniRedis(t)
		require.NoError(t, mr.Set("corrupt", "{not json"))

		var dest payload
		err := Aside(context.Background(), "corrupt", &dest, time.Minute, func() error {
			dest = payload{Name: "fresh"}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "fresh", dest.Name)
	})

	t.Run("no client passes through", func(t *testing.T) {
		SetClient(nil)
		var dest payload
		err := Aside(context.Background(), "k", &dest, time.Minute, func() error {
			dest.Name = "direct"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "direct", dest.Name)
	})
}

func TestInvalidateFeed_ChangesPageKey(t *testing.T) {
	withMiniRedis(t)
	ctx := context.Background()

	before := FeedPageKey(ctx, "01", 20, 0)
	InvalidateFeed(ctx)
	after := FeedPageKey(ctx, "01", 20, 0)

	assert.NotEqual(t, before, after)
	assert.Equal(t, "feed:approved:1:01:20:0", after)
	assert.Equal(t, "feed:approved:1:*:20:0", FeedPageKey(ctx, "", 20, 0))
}

func TestInvalidateUser(t *testing.T) {
	mr := withMiniRedis(t)
	require.NoError(t, mr.Set(UserKey(7), "{}"))

	InvalidateUser(context.Background(), 7)
	assert.False(t, mr.Exists(UserKey(7)))
}
