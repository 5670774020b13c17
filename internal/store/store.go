// Package store provides the render key store: the shared, TTL-expiring
// key-value service that records which templates were rendered. RedisStore is
// the production adapter; MemoryStore serves single-process setups and tests.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frewsxcv/template-tally/internal/config"
	"github.com/frewsxcv/template-tally/internal/types"
)

const (
	// DefaultKeyPrefix namespaces render records.
	DefaultKeyPrefix = config.DefaultKeyPrefix
	// DefaultTTL is how long a render record keeps a template "rendered".
	DefaultTTL = config.DefaultTTL
	// PresenceValue is the value written for every render record.
	PresenceValue = "1"
)

// Store is the minimal contract the tracker needs from a key-value service.
type Store interface {
	// Set writes value under key with the given time-to-live. Failures to
	// reach the service are connectivity errors.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// GetMany looks up keys in one round trip. The result is positionally
	// aligned with keys; missing keys are nil.
	GetMany(ctx context.Context, keys []string) ([]*string, error)
	// Close releases the underlying connections.
	Close() error
}

// Key returns the storage key of a template's render record.
func Key(prefix string, id types.TemplateID) string {
	return prefix + string(id)
}

// Present reports whether a lookup result marks its template as rendered.
func Present(value *string) bool {
	return value != nil && *value != ""
}

// Open builds the store selected by cfg.Driver.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		return NewRedisStoreFromClient(redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:        splitAddrs(cfg.Redis.Addr),
			MasterName:   cfg.Redis.MasterName,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})), nil
	case config.DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func splitAddrs(addr string) []string {
	var addrs []string
	for _, a := range strings.Split(addr, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}
