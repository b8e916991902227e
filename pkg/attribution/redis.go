package attribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dripkit/dripkit/pkg/protocol"
)

// RetentionTTL bounds how long send attributions are kept. Engagement
// webhooks older than this cannot be attributed anyway.
const RetentionTTL = 90 * 24 * time.Hour

// RedisStore keeps send attributions in Redis.
type RedisStore struct {
	client *redis.Client
}

var _ protocol.AttributionStore = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL connects to Redis and verifies the connection.
func NewRedisStoreFromURL(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisStore(client), nil
}

func (s *RedisStore) RecordSend(ctx context.Context, key, messageID string) error {
	err := s.client.Set(ctx, key, messageID, RetentionTTL).Err()
	if err != nil {
		return fmt.Errorf("record send attribution: %w", err)
	}

	return nil
}

func (s *RedisStore) LastMessageID(ctx context.Context, key string) (string, error) {
	messageID, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}

		return "", fmt.Errorf("read send attribution: %w", err)
	}

	return messageID, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
