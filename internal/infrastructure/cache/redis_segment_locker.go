package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockKeyPrefix = "erp:lock:"

// ErrLeaseLost is returned by Release when the lease expired and the key
// is now gone or owned by someone else.
var ErrLeaseLost = errors.New("lease lost before release")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSegmentLocker grants segment leases with SET NX PX so that every
// process sharing the Redis instance sees the same lock.
type RedisSegmentLocker struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisSegmentLocker connects to Redis and verifies the connection
func NewRedisSegmentLocker(ctx context.Context, cfg config.RedisConfig) (*RedisSegmentLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSegmentLockerWithClient(client, ""), nil
}

// NewRedisSegmentLockerWithClient creates a locker over an existing client
func NewRedisSegmentLockerWithClient(client *redis.Client, keyPrefix string) *RedisSegmentLocker {
	if keyPrefix == "" {
		keyPrefix = defaultLockKeyPrefix
	}
	return &RedisSegmentLocker{client: client, keyPrefix: keyPrefix}
}

// TryAcquire sets the key if absent. A held key yields ok=false without error.
func (l *RedisSegmentLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (segmentation.Lease, bool, error) {
	fullKey := l.keyPrefix + key
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}
	return &redisLease{client: l.client, key: fullKey, token: token}, true, nil
}

// Close closes the Redis client
func (l *RedisSegmentLocker) Close() error {
	return l.client.Close()
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (r *redisLease) Release(ctx context.Context) error {
	deleted, err := releaseScript.Run(ctx, r.client, []string{r.key}, r.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", r.key, err)
	}
	if deleted == 0 {
		return ErrLeaseLost
	}
	return nil
}

var _ segmentation.SegmentLocker = (*RedisSegmentLocker)(nil)
