package bundle

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// HashClient is the subset of Redis used by RedisStore.
type HashClient interface {
	HSet(ctx context.Context, key string, fields map[string]interface{}) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

type goRedisClient struct {
	client *redis.Client
}

// NewRedisClient adapts a go-redis client.
func NewRedisClient(client *redis.Client) HashClient {
	return &goRedisClient{client: client}
}

func (c *goRedisClient) HSet(ctx context.Context, key string, fields map[string]interface{}) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *goRedisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, key).Result()
}

func (c *goRedisClient) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// RedisStore keeps each bundle in one Redis hash, one field per artifact.
type RedisStore struct {
	client HashClient
	prefix string
}

// NewRedisStore creates a store writing keys <prefix><outlet>.
func NewRedisStore(client HashClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "fluxcast:bundle:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(outlet string) string {
	return s.prefix + outlet
}

// Save replaces the hash in a single transaction.
func (s *RedisStore) Save(ctx context.Context, b *Bundle) error {
	data, err := encode(b)
	if err != nil {
		return err
	}
	fields := make(map[string]interface{}, len(data))
	for name, content := range data {
		fields[name] = string(content)
	}
	if err := s.client.HSet(ctx, s.key(b.Outlet), fields); err != nil {
		return fmt.Errorf("redis HSET failed: %w", err)
	}
	return nil
}

// Load reads outlet's bundle.
func (s *RedisStore) Load(ctx context.Context, outlet string) (*Bundle, error) {
	fields, err := s.client.HGetAll(ctx, s.key(outlet))
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL failed: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, outlet)
	}
	data := make(map[string][]byte, len(fields))
	for name, content := range fields {
		data[name] = []byte(content)
	}
	return decode(outlet, data)
}

// Delete removes outlet's bundle.
func (s *RedisStore) Delete(ctx context.Context, outlet string) error {
	if err := s.client.Del(ctx, s.key(outlet)); err != nil {
		return fmt.Errorf("redis DEL failed: %w", err)
	}
	return nil
}
