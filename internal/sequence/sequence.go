// Package sequence hands out per-lead monotonic numbers for conversation appends,
// so concurrent writers for the same lead get a total order without cross-lead locking.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
)

type Sequencer interface {
	Next(ctx context.Context, leadID string) (int64, error)
}

// Memory is a process-local Sequencer.
type Memory struct {
	mu   sync.Mutex
	next map[string]int64
}

func NewMemory() *Memory {
	return &Memory{next: make(map[string]int64)}
}

func (m *Memory) Next(_ context.Context, leadID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next[leadID]++
	return m.next[leadID], nil
}

// incrClient is the part of the Redis client the sequencer needs.
type incrClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// Redis shares sequences between service instances through INCR.
type Redis struct {
	client incrClient
	prefix string
}

func NewRedis(client incrClient, prefix string) (*Redis, error) {
	if client == nil {
		return nil, errors.New("sequence: redis client must not be nil")
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "engagement:seq:"
	}
	return &Redis{client: client, prefix: prefix}, nil
}

// Dial connects to a redis:// URL or a host:port address and returns a Redis sequencer
// together with its client for Close.
func Dial(target string) (*Redis, *redis.Client, error) {
	opts := &redis.Options{Addr: target}
	if strings.Contains(target, "://") {
		parsed, err := redis.ParseURL(target)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}
	client := redis.NewClient(opts)
	seq, err := NewRedis(client, "")
	if err != nil {
		return nil, nil, err
	}
	return seq, client, nil
}

func (r *Redis) Next(ctx context.Context, leadID string) (int64, error) {
	n, err := r.client.Incr(ctx, r.prefix+leadID).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence for lead %s: %w", leadID, err)
	}
	return n, nil
}
