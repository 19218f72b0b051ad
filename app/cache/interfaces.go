package cache

import (
	"context"
	"time"
)

// Cache stores serialized values under string keys. A miss is reported as
// ok == false with a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}
