package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	profileIDKey    contextKey = "profile_id"
	keyPrefixKey    contextKey = "key_prefix"
	apiKeyScopesKey contextKey = "api_key_scopes"
)

// SetProfileID stores the authenticated profile on ctx.
func SetProfileID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, profileIDKey, id)
}

// GetProfileID returns the profile that owns the request's API key.
func GetProfileID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(profileIDKey).(string)
	return id, ok && id != ""
}

// SetKeyPrefix is used by Authenticate; tests call it to simulate auth.
func SetKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

// SetScopes is used by Authenticate; tests call it to simulate auth.
func SetScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, apiKeyScopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(apiKeyScopesKey).([]string)
	return scopes
}
