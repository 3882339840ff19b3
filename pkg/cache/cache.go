package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/benedict-erwin/geo-gateway/config"
)

// Cache stores upstream response bodies. Implementations are safe for concurrent use.
// A cache failure is never a request failure: callers treat errors as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Key derives a fixed-length key from a request URL
func Key(prefix, url string) string {
	hash := sha256.Sum256([]byte(url))
	return prefix + "fetch:v1:" + hex.EncodeToString(hash[:])
}

// New builds the cache selected by cache.driver; an empty driver disables caching (nil, nil)
func New(cfg *config.Config) (Cache, error) {
	switch cfg.Cache.Driver {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryCache(time.Hour, 10*time.Minute), nil
	case "redis":
		c, err := NewRedisCache(cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}
