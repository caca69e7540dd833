package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON_ForwardsHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "v1", r.Header.Get("X-Test"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	header := http.Header{}
	header.Set("X-Test", "v1")
	var out struct{ OK bool }
	require.NoError(t, PostJSON(context.Background(), ts.Client(), ts.URL, header, map[string]string{"a": "b"}, &out))
	assert.True(t, out.OK)
}

func TestPostJSON_NonJSONBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer ts.Close()

	var out struct{}
	err := PostJSON(context.Background(), ts.Client(), ts.URL, nil, struct{}{}, &out)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestPostJSON_EmptyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	var out struct{}
	err := PostJSON(context.Background(), ts.Client(), ts.URL, nil, struct{}{}, &out)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestPostJSON_SnippetIsTruncated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer ts.Close()

	var out struct{}
	err := PostJSON(context.Background(), ts.Client(), ts.URL, nil, struct{}{}, &out)
	require.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Less(t, len(err.Error()), 300)
}

func TestClassifyError(t *testing.T) {
	assert.ErrorIs(t, ClassifyError(context.DeadlineExceeded), ErrInferenceTimeout)
	assert.ErrorIs(t, ClassifyError(context.Canceled), ErrInferenceTimeout)
	assert.ErrorIs(t, ClassifyError(errors.New("connection refused")), ErrProviderUnavailable)
}

func TestPostJSON_ClientTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer ts.Close()

	client := &http.Client{Timeout: 50 * time.Millisecond}
	var out struct{}
	err := PostJSON(context.Background(), client, ts.URL, nil, struct{}{}, &out)
	assert.ErrorIs(t, err, ErrInferenceTimeout)
}
