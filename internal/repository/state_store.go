package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/engine"
)

// RedisStateStore keeps per-symbol cooldown and smoother state in Redis so
// scheduled runs pick up where the previous run left off.
type RedisStateStore struct {
	cli    *redis.Client
	prefix string
}

// NewRedisStateStore creates a Redis-backed engine state store.
func NewRedisStateStore(cli *redis.Client, prefix string) *RedisStateStore {
	if prefix == "" {
		prefix = "cryptowatcher:engine"
	}
	return &RedisStateStore{cli: cli, prefix: prefix}
}

func (s *RedisStateStore) key(symbol string) string {
	return fmt.Sprintf("%s:state:%s", s.prefix, symbol)
}

func (s *RedisStateStore) Load(ctx context.Context, symbol string) (engine.SymbolState, bool, error) {
	b, err := s.cli.Get(ctx, s.key(symbol)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return engine.SymbolState{}, false, nil
		}
		return engine.SymbolState{}, false, fmt.Errorf("load engine state: %w", err)
	}
	var st engine.SymbolState
	if err := json.Unmarshal(b, &st); err != nil {
		return engine.SymbolState{}, false, fmt.Errorf("decode engine state: %w", err)
	}
	return st, true, nil
}

func (s *RedisStateStore) Save(ctx context.Context, symbol string, st engine.SymbolState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode engine state: %w", err)
	}
	if err := s.cli.Set(ctx, s.key(symbol), b, 0).Err(); err != nil {
		return fmt.Errorf("save engine state: %w", err)
	}
	return nil
}

// MemoryStateStore keeps engine state in process. Used when a run owns its
// whole history, as in batch evaluation over CSV exports.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]engine.SymbolState
}

// NewMemoryStateStore creates an in-process engine state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]engine.SymbolState)}
}

func (s *MemoryStateStore) Load(_ context.Context, symbol string) (engine.SymbolState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[symbol]
	return st, ok, nil
}

func (s *MemoryStateStore) Save(_ context.Context, symbol string, st engine.SymbolState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[symbol] = st
	return nil
}
