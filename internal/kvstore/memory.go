package kvstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/quisling/quisling-go/internal/obslog"
)

// MemoryStore is an in-process Store used when no redis is configured and in
// tests. Same forgiving read/write contract as RedisStore.
type MemoryStore struct {
	mu        sync.RWMutex
	data      map[string][]byte
	corrupted map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:      make(map[string][]byte),
		corrupted: make(map[string]struct{}),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string, dest any) bool {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.mu.Lock()
		s.corrupted[key] = struct{}{}
		s.mu.Unlock()
		obslog.L().Warn("kv_corrupted", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *MemoryStore) Set(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		obslog.L().Warn("kv_encode_error", zap.String("key", key), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.data, k)
	}
	s.mu.Unlock()
}

func (s *MemoryStore) CorruptedKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.corrupted))
	for k := range s.corrupted {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *MemoryStore) ResetKeys(ctx context.Context, keys ...string) {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.data, k)
		delete(s.corrupted, k)
	}
	s.mu.Unlock()
}

// SetRaw stores bytes verbatim, bypassing JSON encoding. Used by tests to
// simulate corrupted payloads.
func (s *MemoryStore) SetRaw(key string, raw []byte) {
	s.mu.Lock()
	s.data[key] = append([]byte(nil), raw...)
	s.mu.Unlock()
}
