package mock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranshivaraju/mealtrack/internal/ai"
	"github.com/kiranshivaraju/mealtrack/internal/ai/mock"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() models.CompletionRequest {
	return models.CompletionRequest{System: "sys", Prompt: "two eggs and toast"}
}

// --- NewMockProvider ---

func TestNewMockProvider_Identity(t *testing.T) {
	p := mock.NewMockProvider()
	assert.Equal(t, "mock", p.Name())
	assert.Equal(t, "mock-v1", p.Model())
	assert.False(t, p.Cloud())
}

func TestNewMockProvider_CompleteParses(t *testing.T) {
	p := mock.NewMockProvider()
	reply, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)

	result, err := ai.ParseResult(reply)
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.InDelta(t, 450, result.Totals.Calories, 0.001)
}

// --- NewFailingProvider ---

func TestNewFailingProvider_Complete(t *testing.T) {
	p := mock.NewFailingProvider(ai.ErrProviderUnavailable)
	assert.Equal(t, "mock-failing", p.Name())

	_, err := p.Complete(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
}

func TestNewFailingProvider_CustomError(t *testing.T) {
	customErr := errors.New("custom AI error")
	p := mock.NewFailingProvider(customErr)

	_, err := p.Complete(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, customErr)
}

// --- NewTimeoutProvider ---

func TestNewTimeoutProvider_Complete(t *testing.T) {
	p := mock.NewTimeoutProvider()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, sampleRequest())
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)
}

// --- Zero-value MockProvider ---

func TestMockProvider_NilFunc(t *testing.T) {
	p := &mock.MockProvider{Name_: "bare", Cloud_: true}

	reply, err := p.Complete(context.Background(), sampleRequest())
	assert.NoError(t, err)
	assert.Equal(t, "", reply)
	assert.True(t, p.Cloud())
}
