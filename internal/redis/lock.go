package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockNotAcquired 锁已被其它持有者占用
var ErrLockNotAcquired = errors.New("lock not acquired")

// 仅当 token 匹配时才删除，避免释放别人的锁
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// lockRetryInterval 锁被占用时的重试间隔
const lockRetryInterval = 50 * time.Millisecond

// Locker 基于 SET NX PX 的简单互斥锁
type Locker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

// NewLocker 创建锁管理器；锁被占用时最多等待一个 ttl
func NewLocker(client *redis.Client, prefix string, ttl time.Duration) *Locker {
	return &Locker{client: client, prefix: prefix, ttl: ttl, wait: ttl}
}

// Lock 获取 key 对应的锁，返回释放函数
// 锁被占用时按固定间隔重试，等待超时返回 ErrLockNotAcquired
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, fullKey)
		}

		timer := time.NewTimer(lockRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("failed to acquire lock %s: %w", fullKey, ctx.Err())
		case <-timer.C:
		}
	}

	return func() {
		// 使用独立 context，调用方 ctx 取消后仍需释放
		_ = unlockScript.Run(context.Background(), l.client, []string{fullKey}, token).Err()
	}, nil
}
