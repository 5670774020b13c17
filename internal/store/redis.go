package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frewsxcv/template-tally/internal/errors"
)

// RedisStore implements Store with SET ... EX and MGET.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore connects lazily using opts.
func NewRedisStore(opts *redis.Options) *RedisStore {
	return &RedisStore{client: redis.NewClient(opts)}
}

// NewRedisStoreFromClient wraps an existing client (single node, cluster or
// sentinel failover).
func NewRedisStoreFromClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Set writes key with an expiry. go-redis sends EX for whole-second TTLs.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return classify("set", err).WithContext("key", key)
	}
	return nil
}

// GetMany issues a single MGET.
func (s *RedisStore) GetMany(ctx context.Context, keys []string) ([]*string, error) {
	if len(keys) == 0 {
		return []*string{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, classify("mget", err).WithContext("keys", len(keys))
	}

	result := make([]*string, len(values))
	for i, v := range values {
		switch typed := v.(type) {
		case nil:
		case string:
			result[i] = &typed
		default:
			s := fmt.Sprint(typed)
			result[i] = &s
		}
	}
	return result, nil
}

// Ping checks that the server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close closes the client's connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func classify(op string, err error) *errors.TallyError {
	if isConnectivity(err) {
		return errors.NewConnectivityError("redis "+op+" failed", err).WithComponent("store")
	}
	return errors.NewStoreError("redis "+op+" failed", err).WithComponent("store")
}

// isConnectivity reports whether err means the server could not be reached,
// as opposed to the server answering with an error reply.
func isConnectivity(err error) bool {
	var netErr net.Error
	var timeout interface{ Timeout() bool }

	switch {
	case stderrors.As(err, &netErr):
		return true
	case stderrors.As(err, &timeout) && timeout.Timeout():
		return true
	case stderrors.Is(err, redis.ErrClosed),
		stderrors.Is(err, redis.ErrPoolTimeout),
		stderrors.Is(err, io.EOF),
		stderrors.Is(err, io.ErrUnexpectedEOF),
		stderrors.Is(err, syscall.ECONNREFUSED),
		stderrors.Is(err, syscall.ECONNRESET),
		stderrors.Is(err, syscall.EPIPE),
		stderrors.Is(err, context.DeadlineExceeded):
		return true
	default:
		return false
	}
}
