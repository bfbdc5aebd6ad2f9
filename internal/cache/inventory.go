package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix     = "user:%d"
	FeedVersionKey    = "feed:approved:version"
	FeedPageKeyFormat = "feed:approved:%d:%s:%d:%d"
)

const (
	UserTTL = 5 * time.Minute
	FeedTTL = 2 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// FeedPageKey addresses one page of approved post ids. The version component changes on
// every invalidation, so stale pages simply age out.
func FeedPageKey(ctx context.Context, server string, limit, offset int) string {
	var version int64
	if client != nil {
		if v, err := client.Get(ctx, FeedVersionKey).Int64(); err == nil {
			version = v
		}
	}
	if server == "" {
		server = "*"
	}
	return fmt.Sprintf(FeedPageKeyFormat, version, server, limit, offset)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateFeed retires every cached approved-feed page.
func InvalidateFeed(ctx context.Context) {
	if client != nil {
		client.Incr(ctx, FeedVersionKey)
	}
}
