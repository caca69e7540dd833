package offline

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// CachedResponse is a stored copy of a successful same-origin response.
type CachedResponse struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	URL      string      `json:"url"`
	StoredAt time.Time   `json:"stored_at"`
}

// Storage holds cached responses grouped by generation. Writes to the same key
// are last-write-wins.
type Storage interface {
	Open(ctx context.Context, generation string) error
	Put(ctx context.Context, generation, key string, resp *CachedResponse) error
	Get(ctx context.Context, generation, key string) (*CachedResponse, bool, error)
	Generations(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, generation string) error
}

// MemoryStorage keeps generations in process memory.
type MemoryStorage struct {
	mu   sync.RWMutex
	gens map[string]map[string]*CachedResponse
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{gens: make(map[string]map[string]*CachedResponse)}
}

func (m *MemoryStorage) Open(_ context.Context, generation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gens[generation]; !ok {
		m.gens[generation] = make(map[string]*CachedResponse)
	}
	return nil
}

func (m *MemoryStorage) Put(_ context.Context, generation, key string, resp *CachedResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gen, ok := m.gens[generation]
	if !ok {
		gen = make(map[string]*CachedResponse)
		m.gens[generation] = gen
	}
	gen[key] = resp.clone()
	return nil
}

func (m *MemoryStorage) Get(_ context.Context, generation, key string) (*CachedResponse, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp, ok := m.gens[generation][key]
	if !ok {
		return nil, false, nil
	}
	return resp.clone(), true, nil
}

func (m *MemoryStorage) Generations(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.gens))
	for g := range m.gens {
		out = append(out, g)
	}
	slices.Sort(out)
	return out, nil
}

func (m *MemoryStorage) Delete(_ context.Context, generation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gens, generation)
	return nil
}

func (r *CachedResponse) clone() *CachedResponse {
	c := *r
	c.Header = r.Header.Clone()
	c.Body = slices.Clone(r.Body)
	return &c
}

// EntryStore is the byte-level generation API of cache.RedisCache.
type EntryStore interface {
	PutEntry(ctx context.Context, generation, key string, value []byte) error
	GetEntry(ctx context.Context, generation, key string) ([]byte, bool, error)
	OpenGeneration(ctx context.Context, generation string) error
	Generations(ctx context.Context) ([]string, error)
	DeleteGeneration(ctx context.Context, generation string) error
}

// RedisStorage stores responses as JSON in a Redis hash per generation.
type RedisStorage struct {
	entries EntryStore
}

func NewRedisStorage(entries EntryStore) *RedisStorage {
	return &RedisStorage{entries: entries}
}

func (r *RedisStorage) Open(ctx context.Context, generation string) error {
	return r.entries.OpenGeneration(ctx, generation)
}

func (r *RedisStorage) Put(ctx context.Context, generation, key string, resp *CachedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode cached response: %w", err)
	}
	return r.entries.PutEntry(ctx, generation, key, data)
}

func (r *RedisStorage) Get(ctx context.Context, generation, key string) (*CachedResponse, bool, error) {
	data, ok, err := r.entries.GetEntry(ctx, generation, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var resp CachedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, fmt.Errorf("decode cached response %s: %w", key, err)
	}
	return &resp, true, nil
}

func (r *RedisStorage) Generations(ctx context.Context) ([]string, error) {
	return r.entries.Generations(ctx)
}

func (r *RedisStorage) Delete(ctx context.Context, generation string) error {
	return r.entries.DeleteGeneration(ctx, generation)
}

var (
	_ Storage = (*MemoryStorage)(nil)
	_ Storage = (*RedisStorage)(nil)
)
