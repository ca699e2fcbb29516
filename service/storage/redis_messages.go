package storage

import (
	"context"
	"fmt"
	"sort"

	redissvc "DMChat/service/storage/redis"
)

const recentCap = 100

// DMKey derives a stable conversation key from the unordered participant
// pair.
func DMKey(a, b string) string {
	p := []string{a, b}
	sort.Strings(p)
	return fmt.Sprintf("%s:%s", p[0], p[1])
}

func recentKey(conv string) string { return "im:recent:" + conv }

// CacheRecent prepends a serialized message to the conversation's recent
// list, capped at recentCap entries. Advisory cache for the hot read path.
func CacheRecent(ctx context.Context, conv string, raw []byte) error {
	rdb := redissvc.GetRedis()
	if rdb == nil {
		return nil
	}
	pipe := rdb.Pipeline()
	pipe.LPush(ctx, recentKey(conv), raw)
	pipe.LTrim(ctx, recentKey(conv), 0, recentCap-1)
	_, err := pipe.Exec(ctx)
	return err
}

// RecentMessages returns up to n cached messages, newest first.
func RecentMessages(ctx context.Context, conv string, n int64) ([]string, error) {
	rdb := redissvc.GetRedis()
	if rdb == nil {
		return nil, nil
	}
	if n <= 0 || n > recentCap {
		n = recentCap
	}
	return rdb.LRange(ctx, recentKey(conv), 0, n-1).Result()
}
