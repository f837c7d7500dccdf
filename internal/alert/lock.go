package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ScanLock 扫描互斥锁
type ScanLock interface {
	// Acquire 获取锁；acquired 为 false 表示被他人持有
	Acquire(ctx context.Context, ttl time.Duration) (release func(), acquired bool, err error)
}

const defaultScanLockKey = "holding:alerts:scan:lock"

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisScanLock 基于 SET NX PX 的扫描锁
type RedisScanLock struct {
	client redis.UniversalClient
	key    string
}

// NewRedisScanLock 创建 redis 扫描锁，key 为空时使用默认键
func NewRedisScanLock(client redis.UniversalClient, key string) *RedisScanLock {
	if key == "" {
		key = defaultScanLockKey
	}
	return &RedisScanLock{client: client, key: key}
}

// Acquire 实现 ScanLock
func (l *RedisScanLock) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err()
	}
	return release, true, nil
}
