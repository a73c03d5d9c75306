package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/config"
	rediskeys "github.com/trelloplus/bot-server-go/internal/redis"
	"github.com/trelloplus/bot-server-go/internal/util"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker shares locks between processes. A lock expires after ttl even
// if its holder never releases it.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    config.LockTTL,
		retry:  config.LockRetryInterval,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, timeout time.Duration) (func(), error) {
	key := rediskeys.LockKey(name)
	token, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate lock token: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	return func() {
		// The caller's context may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			log.Warn().Err(err).Str("lock", name).Msg("failed to release lock")
		}
	}, nil
}
