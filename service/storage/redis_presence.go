package storage

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/pkg/errors"

	"DMChat/logger"
	redissvc "DMChat/service/storage/redis"
)

// presence key: im:presence:<user>
// Value: conn id, TTL bounds how long a dead entry can outlive its socket.
func presenceKey(user string) string { return "im:presence:" + user }

// Mirror is the redis copy of the in-memory presence registry. It is
// advisory: ops can inspect it, but correctness never depends on it, so
// every failure is logged and swallowed.
type Mirror struct {
	TTL time.Duration
}

func NewMirror(ttl time.Duration) *Mirror {
	if ttl <= 0 {
		ttl = 35 * time.Minute
	}
	return &Mirror{TTL: ttl}
}

func (m *Mirror) Online(user, connID string) {
	rdb := redissvc.GetRedis()
	if rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Set(ctx, presenceKey(user), connID, m.TTL).Err(); err != nil {
		logger.Warnf("[presence] mirror online user=%s: %v", user, err)
	}
}

func (m *Mirror) Offline(user string) {
	rdb := redissvc.GetRedis()
	if rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Del(ctx, presenceKey(user)).Err(); err != nil {
		logger.Warnf("[presence] mirror offline user=%s: %v", user, err)
	}
}

// PresenceLookup reports the mirrored conn id for user, if any.
func PresenceLookup(ctx context.Context, user string) (connID string, online bool, err error) {
	rdb := redissvc.GetRedis()
	if rdb == nil {
		return "", false, errors.New("redis not initialized")
	}
	val, err := rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
