package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quisling/quisling-go/internal/obslog"
)

const defaultTTL = 0 // keep forever; game state is small

// RedisStore persists JSON values in redis. Decode failures flag the key as
// corrupted and fall back to the caller's default instead of erroring.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration

	mu        sync.Mutex
	corrupted map[string]struct{}
}

// NewRedisStore connects to the given redis URL and pings it once.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb, ttl: defaultTTL, corrupted: make(map[string]struct{})}, nil
}

// NewRedisStoreWithClient wraps an existing client (tests, shared pools).
func NewRedisStoreWithClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: defaultTTL, corrupted: make(map[string]struct{})}
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string, dest any) bool {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		obslog.L().Warn("kv_read_error", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.flagCorrupted(key)
		obslog.L().Warn("kv_corrupted", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *RedisStore) Set(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		obslog.L().Warn("kv_encode_error", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		obslog.L().Warn("kv_write_error", zap.String("key", key), zap.Error(err))
	}
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		obslog.L().Warn("kv_delete_error", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (s *RedisStore) CorruptedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.corrupted))
	for k := range s.corrupted {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *RedisStore) ResetKeys(ctx context.Context, keys ...string) {
	s.Delete(ctx, keys...)
	s.mu.Lock()
	for _, k := range keys {
		delete(s.corrupted, k)
	}
	s.mu.Unlock()
}

func (s *RedisStore) flagCorrupted(key string) {
	s.mu.Lock()
	s.corrupted[key] = struct{}{}
	s.mu.Unlock()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
