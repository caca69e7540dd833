package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/mealtrack/internal/ai/transport"
	"github.com/kiranshivaraju/mealtrack/internal/config"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

// Provider implements models.AIProvider against the OpenAI chat completions API.
// Self-hosted servers that speak the same API reuse it through NewCompatible.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	cloud   bool
	client  *http.Client
}

func NewProvider(cfg config.OpenAIConfig, timeout time.Duration) *Provider {
	return NewCompatible("openai", cfg.BaseURL, cfg.APIKey, cfg.Model, true, timeout)
}

// NewCompatible builds a provider for any server exposing /v1/chat/completions.
// Cloud providers require an API key; local ones send none.
func NewCompatible(name, baseURL, apiKey, model string, cloud bool, timeout time.Duration) *Provider {
	return &Provider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		cloud:   cloud,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string  { return p.name }
func (p *Provider) Model() string { return p.model }
func (p *Provider) Cloud() bool   { return p.cloud }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	if p.cloud && p.apiKey == "" {
		return "", fmt.Errorf("%s: %w", p.name, transport.ErrMissingAPIKey)
	}

	parts := []contentPart{{Type: "text", Text: req.Prompt}}
	if req.Image != nil {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:" + req.Image.MimeType + ";base64," + req.Image.Base64},
		})
	}

	body := chatRequest{
		Model:       p.model,
		Temperature: 0.2,
		Messages: []message{
			{Role: "system", Content: []contentPart{{Type: "text", Text: req.System}}},
			{Role: "user", Content: parts},
		},
	}

	header := http.Header{}
	if p.apiKey != "" {
		header.Set("Authorization", "Bearer "+p.apiKey)
	}

	var resp chatResponse
	if err := transport.PostJSON(ctx, p.client, p.baseURL+"/v1/chat/completions", header, body, &resp); err != nil {
		return "", fmt.Errorf("%s: %w", p.name, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%s: %w: no choices in reply", p.name, transport.ErrInvalidResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// --- wire types ---

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

var _ models.AIProvider = (*Provider)(nil)
