package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	logx "notifymanager/pkg/logx"
)

const defaultRedisKey = "notify_manager:templates"

// kv is the subset of the redis client the store needs.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

type redisStore struct {
	client kv
	key    string
	log    logx.Logger
}

var _ kv = (*redis.Client)(nil)

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("storage.redis.addr is required for redis driver")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisStore(client, cfg.Key, log), nil
}

func newRedisStore(client kv, key string, log logx.Logger) *redisStore {
	if strings.TrimSpace(key) == "" {
		key = defaultRedisKey
	}
	return &redisStore{client: client, key: key, log: log}
}

func (s *redisStore) Load(ctx context.Context) (Document, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return decode([]byte(raw))
}

func (s *redisStore) Save(ctx context.Context, doc Document) error {
	b, err := encode(doc)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *redisStore) Close() error { return s.client.Close() }
