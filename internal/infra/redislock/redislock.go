package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 値が自分のトークンのときだけ消す
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker は SET NX PX による簡易分散ロック
type Locker struct {
	rdb   redis.UniversalClient
	owner string
}

// owner はプロセスごとに一意な値（ホスト名+UUIDなど）
func New(rdb redis.UniversalClient, owner string) *Locker {
	return &Locker{rdb: rdb, owner: owner}
}

// NewClient は接続確認まで行う
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func lockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, lockKey(key), l.owner, ttl).Result()
}

func (l *Locker) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, l.rdb, []string{lockKey(key)}, l.owner).Err()
}
