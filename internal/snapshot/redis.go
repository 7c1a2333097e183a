package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tordrt/catalogmodel/internal/model"
)

// RedisStore keeps snapshots as string values under a key prefix
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to addr and checks the connection
func NewRedisStore(ctx context.Context, addr, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, prefix), nil
}

// NewRedisStoreWithClient creates a store over an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Save stores a snapshot without expiry
func (s *RedisStore) Save(ctx context.Context, name string, doc *model.ModelDoc) error {
	if err := checkName(name); err != nil {
		return err
	}
	data, err := encode(doc)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+name, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot
func (s *RedisStore) Load(ctx context.Context, name string) (*model.ModelDoc, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.prefix+name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return decode(name, data)
}

// List returns snapshot names in lexical order
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var names []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
