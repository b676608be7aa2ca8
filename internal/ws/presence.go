package ws

import (
	"context"
	"sort"
	"sync"

	"github.com/go-redis/redis/v8"
)

// PresenceStore counts live connections per user. Add reports whether the
// user just came online and Remove whether the user just went offline.
type PresenceStore interface {
	Add(ctx context.Context, userID string) (bool, error)
	Remove(ctx context.Context, userID string) (bool, error)
	Online(ctx context.Context) ([]string, error)
}

// MemoryPresence is the single-node presence store.
type MemoryPresence struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{counts: make(map[string]int)}
}

func (p *MemoryPresence) Add(_ context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[userID]++
	return p.counts[userID] == 1, nil
}

func (p *MemoryPresence) Remove(_ context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.counts[userID]
	if !ok {
		return false, nil
	}
	if n <= 1 {
		delete(p.counts, userID)
		return true, nil
	}
	p.counts[userID] = n - 1
	return false, nil
}

func (p *MemoryPresence) Online(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.counts))
	for id := range p.counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// RedisPresence keeps connection counts in a Redis hash shared by every node.
type RedisPresence struct {
	client *redis.Client
	key    string
}

const defaultPresenceKey = "chat:presence"

func NewRedisPresence(client *redis.Client, key string) *RedisPresence {
	if key == "" {
		key = defaultPresenceKey
	}
	return &RedisPresence{client: client, key: key}
}

func (p *RedisPresence) Add(ctx context.Context, userID string) (bool, error) {
	n, err := p.client.HIncrBy(ctx, p.key, userID, 1).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *RedisPresence) Remove(ctx context.Context, userID string) (bool, error) {
	n, err := p.client.HIncrBy(ctx, p.key, userID, -1).Result()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := p.client.HDel(ctx, p.key, userID).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *RedisPresence) Online(ctx context.Context) ([]string, error) {
	ids, err := p.client.HKeys(ctx, p.key).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
