package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/soyapp/soy-backend/pkg/logger"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short leases with SET NX PX.
type Locker struct {
	client *redis.Client
	prefix string
	logger *logger.Logger
}

func NewLocker(client *redis.Client, prefix string, log *logger.Logger) *Locker {
	return &Locker{client: client, prefix: prefix, logger: log.With("redis_lock")}
}

// TryLock acquires key for ttl. ok is false when another holder has it.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err = l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		l.release(ctx, fullKey, token)
	}
	return release, true, nil
}

// release logs a failed unlock. The key still expires after its ttl.
func (l *Locker) release(ctx context.Context, fullKey, token string) {
	if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
		l.logger.Error(err, "failed to release lock", "key", fullKey)
	}
}
