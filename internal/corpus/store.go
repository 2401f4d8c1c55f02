package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

// Store answers "give me every opportunity record".
type Store interface {
	Name() string
	Load(ctx context.Context) (*Document, error)
}

// FileStore reads the JSON document written by a scrape run.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Name() string { return "file:" + s.path }

func (s *FileStore) Load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return Decode(raw)
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore reads the JSON document from a single Redis key.
type RedisStore struct {
	client redisGetter
	key    string
}

func NewRedisStore(client redisGetter, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Name() string { return "redis:" + s.key }

func (s *RedisStore) Load(ctx context.Context) (*Document, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis key %q not found", s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", s.key, err)
	}
	return Decode(raw)
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}
