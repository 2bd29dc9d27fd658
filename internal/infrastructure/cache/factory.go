package cache

import (
	"context"
	"fmt"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/infrastructure/config"
	"go.uber.org/zap"
)

// SegmentLockerCloser is a SegmentLocker that owns resources
type SegmentLockerCloser interface {
	segmentation.SegmentLocker
	Close() error
}

// NewSegmentLocker builds the locker selected by segmentation.lock_backend.
// The redis backend never falls back to memory: a silent fallback would
// let two instances recalculate the same segment at once.
func NewSegmentLocker(ctx context.Context, seg config.SegmentationConfig, redisCfg config.RedisConfig, logger *zap.Logger) (SegmentLockerCloser, error) {
	switch seg.LockBackend {
	case config.LockBackendRedis:
		locker, err := NewRedisSegmentLocker(ctx, redisCfg)
		if err != nil {
			return nil, fmt.Errorf("redis lock backend unavailable: %w", err)
		}
		logger.Info("Using Redis segment leases", zap.String("addr", redisCfg.Addr()))
		return locker, nil
	case config.LockBackendMemory, "":
		logger.Warn("Using in-memory segment leases; recalculation is only serialized within this process")
		return NewInMemorySegmentLocker(), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", seg.LockBackend)
	}
}
