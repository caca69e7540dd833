package offline

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEntries mimics cache.RedisCache's generation hashes.
type fakeEntries struct {
	mu   sync.Mutex
	gens map[string]map[string][]byte
	err  error
}

func newFakeEntries() *fakeEntries {
	return &fakeEntries{gens: map[string]map[string][]byte{}}
}

func (f *fakeEntries) PutEntry(_ context.Context, generation, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.gens[generation] == nil {
		f.gens[generation] = map[string][]byte{}
	}
	f.gens[generation][key] = value
	return nil
}

func (f *fakeEntries) GetEntry(_ context.Context, generation, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	v, ok := f.gens[generation][key]
	return v, ok, nil
}

func (f *fakeEntries) OpenGeneration(_ context.Context, generation string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gens[generation] == nil {
		f.gens[generation] = map[string][]byte{}
	}
	return nil
}

func (f *fakeEntries) Generations(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for g := range f.gens {
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeEntries) DeleteGeneration(_ context.Context, generation string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.gens, generation)
	return nil
}

func sampleResponse() *CachedResponse {
	return &CachedResponse{
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": {"text/html"}},
		Body:     []byte("<html></html>"),
		URL:      "http://origin/",
		StoredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestRedisStorage_PutGet(t *testing.T) {
	ctx := context.Background()
	s := NewRedisStorage(newFakeEntries())

	require.NoError(t, s.Put(ctx, "v1", "/", sampleResponse()))

	got, ok, err := s.Get(ctx, "v1", "/")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, "text/html", got.Header.Get("Content-Type"))
	assert.Equal(t, "<html></html>", string(got.Body))
	assert.True(t, got.StoredAt.Equal(sampleResponse().StoredAt))

	_, ok, err = s.Get(ctx, "v1", "/missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStorage_Generations(t *testing.T) {
	ctx := context.Background()
	s := NewRedisStorage(newFakeEntries())
	require.NoError(t, s.Open(ctx, "v1"))
	require.NoError(t, s.Put(ctx, "v2", "/", sampleResponse()))

	gens, err := s.Generations(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"v1", "v2"}, gens)

	require.NoError(t, s.Delete(ctx, "v1"))
	gens, err = s.Generations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, gens)
}

func TestRedisStorage_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	entries := newFakeEntries()
	require.NoError(t, entries.PutEntry(ctx, "v1", "/", []byte("{not json")))

	_, _, err := NewRedisStorage(entries).Get(ctx, "v1", "/")
	assert.Error(t, err)
}

func TestRedisStorage_BackendError(t *testing.T) {
	entries := newFakeEntries()
	entries.err = errors.New("connection refused")
	s := NewRedisStorage(entries)

	_, ok, err := s.Get(context.Background(), "v1", "/")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, s.Put(context.Background(), "v1", "/", sampleResponse()))
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	resp := sampleResponse()
	require.NoError(t, s.Put(ctx, "v1", "/", resp))

	resp.Body[0] = 'X'
	resp.Header.Set("Content-Type", "changed")

	got, ok, err := s.Get(ctx, "v1", "/")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "<html></html>", string(got.Body))
	assert.Equal(t, "text/html", got.Header.Get("Content-Type"))

	got.Body[0] = 'Y'
	again, _, _ := s.Get(ctx, "v1", "/")
	assert.Equal(t, "<html></html>", string(again.Body))
}

func TestMemoryStorage_DeleteGeneration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.Put(ctx, "v1", "/", sampleResponse()))
	require.NoError(t, s.Open(ctx, "v2"))

	gens, _ := s.Generations(ctx)
	assert.Equal(t, []string{"v1", "v2"}, gens)

	require.NoError(t, s.Delete(ctx, "v1"))
	_, ok, _ := s.Get(ctx, "v1", "/")
	assert.False(t, ok)
}
