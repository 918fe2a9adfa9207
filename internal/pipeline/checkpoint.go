package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/andresuchdata/supplyplan/internal/config"
	"github.com/redis/go-redis/v9"
)

const checkpointKeyPrefix = "supplyplan:run"

// CheckpointStore persists paused pipeline state. The human-review
// pause is a genuine suspension point: the resume call may arrive in a
// different process, so the paused state must live outside the call
// stack. No timeout is enforced on a paused run.
type CheckpointStore interface {
	Save(ctx context.Context, state *State) error
	Load(ctx context.Context, runID string) (*State, error)
	Delete(ctx context.Context, runID string) error
}

// NewCheckpointStore returns a Redis-backed store when enabled,
// otherwise an in-process store (resume must then hit the same process).
func NewCheckpointStore(cfg config.CheckpointConfig) (CheckpointStore, error) {
	if !cfg.RedisEnabled {
		return NewMemoryCheckpointStore(), nil
	}

	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &redisCheckpointStore{
		client: client,
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
	}, nil
}

func buildRedisOptions(cfg config.CheckpointConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host := cfg.RedisHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.RedisPort
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

type redisCheckpointStore struct {
	client *redis.Client
	ttl    time.Duration
}

func checkpointKey(runID string) string {
	return fmt.Sprintf("%s:%s", checkpointKeyPrefix, runID)
}

func (s *redisCheckpointStore) Save(ctx context.Context, state *State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, checkpointKey(state.RunID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *redisCheckpointStore) Load(ctx context.Context, runID string) (*State, error) {
	payload, err := s.client.Get(ctx, checkpointKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &state, nil
}

func (s *redisCheckpointStore) Delete(ctx context.Context, runID string) error {
	return s.client.Del(ctx, checkpointKey(runID)).Err()
}

// MemoryCheckpointStore keeps checkpoints in process memory.
type MemoryCheckpointStore struct {
	mu     sync.Mutex
	states map[string][]byte
}

// NewMemoryCheckpointStore creates an empty in-process store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{states: make(map[string][]byte)}
}

func (s *MemoryCheckpointStore) Save(ctx context.Context, state *State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.RunID] = payload
	return nil
}

func (s *MemoryCheckpointStore) Load(ctx context.Context, runID string) (*State, error) {
	s.mu.Lock()
	payload, ok := s.states[runID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &state, nil
}

func (s *MemoryCheckpointStore) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, runID)
	return nil
}
