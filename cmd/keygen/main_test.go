package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiranshivaraju/mealtrack/internal/apikey"
	"github.com/kiranshivaraju/mealtrack/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mealtrack.db")
	t.Setenv("MEALTRACK_CONFIG", "")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("APP_ORIGIN_URL", "http://localhost:5173")
	t.Setenv("AI_PROVIDER", "ollama")
	return path
}

func TestRun_PrintsKeyOnce(t *testing.T) {
	path := sqliteEnv(t)

	var out bytes.Buffer
	require.NoError(t, run([]string{"-name", "laptop"}, &out))

	line := strings.SplitN(out.String(), "\n", 2)[0]
	idx := strings.Index(line, apikey.Prefix)
	require.NotEqual(t, -1, idx, out.String())
	raw := line[idx:]

	s, err := store.NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	keys, err := s.GetAPIKeyByPrefix(context.Background(), raw[:apikey.PrefixLen])
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, apikey.Matches(keys[0], raw))
	assert.Equal(t, "laptop", keys[0].Name)
	assert.Equal(t, []string{"read", "write", "admin"}, keys[0].Scopes)
}

func TestCreateKey_CreatesMissingProfile(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "mealtrack.db"))
	require.NoError(t, err)
	defer s.Close()

	_, key, err := createKey(ctx, s, "kitchen-tablet", "tablet", []string{"read"})
	require.NoError(t, err)
	assert.Equal(t, "kitchen-tablet", key.ProfileID)

	p, err := s.GetProfile(ctx, "kitchen-tablet")
	require.NoError(t, err)
	assert.False(t, p.CloudConsent)
}

func TestCreateKey_UnknownScope(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "mealtrack.db"))
	require.NoError(t, err)
	defer s.Close()

	_, _, err = createKey(ctx, s, store.DefaultProfileID, "x", []string{"superuser"})
	assert.Error(t, err)
}

func TestRun_BadFlag(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run([]string{"-nope"}, &out))
}

func TestSplitScopes(t *testing.T) {
	assert.Equal(t, []string{"read", "admin"}, splitScopes(" read, ,admin "))
	assert.Nil(t, splitScopes(""))
}
