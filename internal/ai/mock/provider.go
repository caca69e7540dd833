package mock

import (
	"context"

	"github.com/kiranshivaraju/mealtrack/internal/ai"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

// CannedReply is the JSON body NewMockProvider answers with.
const CannedReply = `{"items":[{"name":"Grilled chicken","quantity":"150 g","calories":250,"protein_g":45,"carbs_g":0,"fat_g":6},` +
	`{"name":"Rice","quantity":"1 cup","calories":200,"protein_g":4,"carbs_g":44,"fat_g":0.5}],` +
	`"totals":{"calories":450,"protein_g":49,"carbs_g":44,"fat_g":6.5}}`

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_        string
	Model_       string
	Cloud_       bool
	CompleteFunc func(ctx context.Context, req models.CompletionRequest) (string, error)
}

func (m *MockProvider) Name() string  { return m.Name_ }
func (m *MockProvider) Model() string { return m.Model_ }
func (m *MockProvider) Cloud() bool   { return m.Cloud_ }

func (m *MockProvider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", nil
}

// NewMockProvider returns a local MockProvider that always answers with CannedReply.
func NewMockProvider() *MockProvider {
	return NewReplyProvider(CannedReply)
}

// NewReplyProvider returns a local MockProvider that always answers with reply.
func NewReplyProvider(reply string) *MockProvider {
	return &MockProvider{
		Name_:  "mock",
		Model_: "mock-v1",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return reply, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_:  "mock-failing",
		Model_: "mock-v1",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_:  "mock-timeout",
		Model_: "mock-v1",
		CompleteFunc: func(ctx context.Context, _ models.CompletionRequest) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
