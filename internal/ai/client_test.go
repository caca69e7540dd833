package ai_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/mealtrack/internal/ai"
	"github.com/kiranshivaraju/mealtrack/internal/ai/mock"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const photoURI = "data:image/jpeg;base64,/9j/4AAQSkZJRg=="

func TestAnalyze_Photo(t *testing.T) {
	var seen models.CompletionRequest
	p := mock.NewMockProvider()
	p.CompleteFunc = func(_ context.Context, req models.CompletionRequest) (string, error) {
		seen = req
		return mock.CannedReply, nil
	}

	c := ai.NewClient(p, time.Second)
	result, err := c.Analyze(context.Background(), models.AnalysisInput{
		PhotoDataURI: photoURI,
		Description:  "lunch at the office",
	})
	require.NoError(t, err)

	require.NotNil(t, seen.Image)
	assert.Equal(t, "image/jpeg", seen.Image.MimeType)
	assert.Equal(t, "/9j/4AAQSkZJRg==", seen.Image.Base64)
	assert.Contains(t, seen.Prompt, "lunch at the office")

	assert.Len(t, result.Items, 2)
	assert.Equal(t, "mock", result.Provenance.Provider)
	assert.Equal(t, "mock-v1", result.Provenance.Model)
	assert.Equal(t, models.SourcePhoto, result.Provenance.Source)
	assert.False(t, result.Provenance.AnalyzedAt.IsZero())
}

func TestAnalyze_Text(t *testing.T) {
	var seen models.CompletionRequest
	p := mock.NewMockProvider()
	p.CompleteFunc = func(_ context.Context, req models.CompletionRequest) (string, error) {
		seen = req
		return mock.CannedReply, nil
	}

	result, err := ai.NewClient(p, time.Second).Analyze(context.Background(), models.AnalysisInput{
		Text: "Breakfast: oatmeal with banana",
	})
	require.NoError(t, err)
	assert.Nil(t, seen.Image)
	assert.Contains(t, seen.Prompt, "oatmeal with banana")
	assert.Equal(t, models.SourceText, result.Provenance.Source)
}

func TestAnalyze_CloudWithoutConsent(t *testing.T) {
	called := false
	p := mock.NewMockProvider()
	p.Cloud_ = true
	p.CompleteFunc = func(_ context.Context, _ models.CompletionRequest) (string, error) {
		called = true
		return mock.CannedReply, nil
	}

	_, err := ai.NewClient(p, time.Second).Analyze(context.Background(), models.AnalysisInput{Text: "toast"})
	assert.ErrorIs(t, err, ai.ErrConsentRequired)
	assert.False(t, called)

	_, err = ai.NewClient(p, time.Second).Analyze(context.Background(), models.AnalysisInput{Text: "toast", CloudConsent: true})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestAnalyze_InvalidPhoto(t *testing.T) {
	_, err := ai.NewClient(mock.NewMockProvider(), time.Second).Analyze(context.Background(), models.AnalysisInput{
		PhotoDataURI: "data:text/plain;base64,aGk=",
	})
	assert.ErrorIs(t, err, ai.ErrInvalidMedia)
}

func TestAnalyze_MissingInput(t *testing.T) {
	_, err := ai.NewClient(mock.NewMockProvider(), time.Second).Analyze(context.Background(), models.AnalysisInput{Text: "   "})
	assert.ErrorIs(t, err, ai.ErrMissingInput)
}

func TestAnalyze_ProviderFailure(t *testing.T) {
	_, err := ai.NewClient(mock.NewFailingProvider(ai.ErrProviderUnavailable), time.Second).
		Analyze(context.Background(), models.AnalysisInput{Text: "toast"})
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
}

func TestAnalyze_Timeout(t *testing.T) {
	start := time.Now()
	_, err := ai.NewClient(mock.NewTimeoutProvider(), 50*time.Millisecond).
		Analyze(context.Background(), models.AnalysisInput{Text: "toast"})
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAnalyze_DeadlineWithoutSentinel(t *testing.T) {
	p := mock.NewMockProvider()
	p.CompleteFunc = func(ctx context.Context, _ models.CompletionRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	_, err := ai.NewClient(p, 20*time.Millisecond).Analyze(context.Background(), models.AnalysisInput{Text: "toast"})
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)
}

func TestAnalyze_UnparseableReply(t *testing.T) {
	_, err := ai.NewClient(mock.NewReplyProvider("I think it's a sandwich"), time.Second).
		Analyze(context.Background(), models.AnalysisInput{Text: "toast"})
	assert.ErrorIs(t, err, ai.ErrInvalidResponse)
}

// --- ParseResult ---

func TestParseResult_CodeFence(t *testing.T) {
	raw := "```json\n{\"items\":[{\"name\":\"Egg\",\"quantity\":2,\"calories\":140,\"protein_g\":12}]}\n```"
	result, err := ai.ParseResult(raw)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Egg", result.Items[0].Name)
	assert.Equal(t, "2", result.Items[0].Quantity)
	assert.InDelta(t, 140, result.Totals.Calories, 0.001)
	assert.InDelta(t, 12, result.Totals.ProteinG, 0.001)
}

func TestParseResult_SurroundingProse(t *testing.T) {
	raw := `Sure! Here is the estimate: {"items":[{"name":"Apple","calories":95}]} Enjoy.`
	result, err := ai.ParseResult(raw)
	require.NoError(t, err)
	assert.Equal(t, "Apple", result.Items[0].Name)
}

func TestParseResult_ProvidedTotalsWin(t *testing.T) {
	raw := `{"items":[{"name":"Apple","calories":95}],"totals":{"calories":100,"protein_g":1,"carbs_g":25,"fat_g":0}}`
	result, err := ai.ParseResult(raw)
	require.NoError(t, err)
	assert.InDelta(t, 100, result.Totals.Calories, 0.001)
	assert.InDelta(t, 25, result.Totals.CarbsG, 0.001)
}

func TestParseResult_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"no object", "nothing here", ai.ErrInvalidResponse},
		{"malformed", `{"items":[{"name":}`, ai.ErrInvalidResponse},
		{"missing items", `{"totals":{"calories":1}}`, ai.ErrInvalidResponse},
		{"empty items", `{"items":[]}`, ai.ErrEmptyResult},
		{"unnamed item", `{"items":[{"name":" ","calories":10}]}`, ai.ErrInvalidResponse},
		{"missing calories", `{"items":[{"name":"Tea"}]}`, ai.ErrInvalidResponse},
		{"negative macro", `{"items":[{"name":"Tea","calories":2,"fat_g":-1}]}`, ai.ErrInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ai.ParseResult(tt.raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// --- ParseDataURI ---

func TestParseDataURI(t *testing.T) {
	img, err := ai.ParseDataURI(photoURI)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MimeType)

	bad := []string{
		"/9j/4AAQ",
		"data:image/png;base64",
		"data:image/png,raw",
		"data:text/plain;base64,aGk=",
		"data:image/png;base64,",
		"data:image/png;base64,%%%",
	}
	for _, uri := range bad {
		_, err := ai.ParseDataURI(uri)
		assert.ErrorIs(t, err, ai.ErrInvalidMedia, uri)
	}
}

func TestAnalyze_LongDescriptionTruncated(t *testing.T) {
	var seen models.CompletionRequest
	p := mock.NewMockProvider()
	p.CompleteFunc = func(_ context.Context, req models.CompletionRequest) (string, error) {
		seen = req
		return mock.CannedReply, nil
	}

	_, err := ai.NewClient(p, time.Second).Analyze(context.Background(), models.AnalysisInput{
		Text: strings.Repeat("é", 3000),
	})
	require.NoError(t, err)
	assert.Less(t, len(seen.Prompt), 2200)
	assert.True(t, strings.HasSuffix(seen.Prompt, "é"))
}
