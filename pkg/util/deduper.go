package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper guards message handlers against redelivered events.
type Deduper struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{rdb: rdb, ttl: ttl, logger: logger}
}

// DedupKey builds the redis key for one handler and event identity.
func DedupKey(handler, eventKey string) string {
	return fmt.Sprintf("dedup:%s:%s", handler, eventKey)
}

// AcquireOnce reports whether this is the first time handler sees eventKey.
// Redis failures fail open; the database unique constraints are the backstop.
func (d *Deduper) AcquireOnce(ctx context.Context, handler, eventKey string) bool {
	key := DedupKey(handler, eventKey)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.String("event_key", eventKey),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.String("dedup_key", key),
		)
	}
	return ok
}

// Release forgets eventKey so a failed attempt can be processed again.
func (d *Deduper) Release(ctx context.Context, handler, eventKey string) {
	if err := d.rdb.Del(ctx, DedupKey(handler, eventKey)).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("handler", handler),
			zap.String("event_key", eventKey),
			zap.Error(err),
		)
	}
}
