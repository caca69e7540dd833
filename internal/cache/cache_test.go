package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/mealtrack/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis spins up a Redis container and returns a connected RedisCache + cleanup.
func setupRedis(t *testing.T) *cache.RedisCache {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	redisURL := "redis://" + host + ":" + port.Port()
	rc, err := cache.NewRedisCache(redisURL)
	require.NoError(t, err)

	return rc
}

// --- Ping ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	err := rc.Ping(context.Background())
	assert.NoError(t, err)
}

// --- Set / Get roundtrip ---

func TestSetGet_Roundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	err := rc.Set(ctx, "test:key", []byte("hello"), 10*time.Second)
	require.NoError(t, err)

	val, found, err := rc.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), val)
}

func TestGet_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)

	val, found, err := rc.Get(context.Background(), "nonexistent:key")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)
}

func TestSet_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	err := rc.Set(ctx, "expiry:key", []byte("temp"), 1*time.Second)
	require.NoError(t, err)

	// Immediately should exist
	_, found, err := rc.Get(ctx, "expiry:key")
	require.NoError(t, err)
	assert.True(t, found)

	// Wait for TTL to expire
	time.Sleep(1500 * time.Millisecond)

	_, found, err = rc.Get(ctx, "expiry:key")
	require.NoError(t, err)
	assert.False(t, found)
}

// --- Delete ---

func TestDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "del:key", []byte("bye"), 10*time.Second))

	err := rc.Delete(ctx, "del:key")
	require.NoError(t, err)

	_, found, err := rc.Get(ctx, "del:key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDelete_NonExistent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)

	err := rc.Delete(context.Background(), "does:not:exist")
	assert.NoError(t, err)
}

// --- Publish / Subscribe ---

func TestPublish_DeliveredToSubscriber(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	sub := rc.Subscribe(ctx, cache.NotificationChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, rc.Publish(ctx, cache.NotificationChannel, []byte(`{"message":"hi"}`)))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, `{"message":"hi"}`, msg.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

// --- Offline generations ---

func TestGenerationEntries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.PutEntry(ctx, "v1", "/index.html", []byte("old")))
	require.NoError(t, rc.PutEntry(ctx, "v2", "/index.html", []byte("new")))
	require.NoError(t, rc.OpenGeneration(ctx, "v3"))

	gens, err := rc.Generations(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"v1", "v2", "v3"}, gens)

	val, found, err := rc.GetEntry(ctx, "v2", "/index.html")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("new"), val)

	require.NoError(t, rc.DeleteGeneration(ctx, "v1"))
	_, found, err = rc.GetEntry(ctx, "v1", "/index.html")
	require.NoError(t, err)
	assert.False(t, found)

	gens, err = rc.Generations(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"v2", "v3"}, gens)
}

func TestGetEntry_Missing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)

	val, found, err := rc.GetEntry(context.Background(), "v1", "/nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)
}

// --- IncrWithExpiry ---

func TestIncrWithExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	key := "ratelimit:test:" + uuid.NewString()[:8]

	val, err := rc.IncrWithExpiry(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)

	val, err = rc.IncrWithExpiry(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), val)

	val, err = rc.IncrWithExpiry(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(3), val)
}

func TestIncrWithExpiry_Expires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	key := "ratelimit:expiry:" + uuid.NewString()[:8]

	_, err := rc.IncrWithExpiry(ctx, key, 1*time.Second)
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	// After expiry, should start from 1 again
	val, err := rc.IncrWithExpiry(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)
}

// --- Cache Key Builders ---

func TestMealKey(t *testing.T) {
	assert.Equal(t, "meal:11111111-1111-1111-1111-111111111111", cache.MealKey("11111111-1111-1111-1111-111111111111"))
}

func TestPlanKey(t *testing.T) {
	assert.Equal(t, "plan:abc", cache.PlanKey("abc"))
}

func TestRateLimitKey(t *testing.T) {
	key := cache.RateLimitKey("mt_abcd1234")
	assert.Equal(t, "ratelimit:mt_abcd1234", key)
}

func TestOfflineGenerationKey(t *testing.T) {
	assert.Equal(t, "offline:gen:mealtrack-v1", cache.OfflineGenerationKey("mealtrack-v1"))
}

func TestKeyBuilders_NonColliding(t *testing.T) {
	id := uuid.NewString()

	keys := map[string]bool{
		cache.MealKey(id):              true,
		cache.PlanKey(id):              true,
		cache.RateLimitKey(id):         true,
		cache.OfflineGenerationKey(id): true,
		cache.OfflineGenerationsKey:    true,
	}
	assert.Len(t, keys, 5, "all keys should be unique")
}
