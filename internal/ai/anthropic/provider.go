package anthropic

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

const (
	apiVersion = "2023-06-01"
	maxTokens  = 1024
)

// Provider implements models.AIProvider using the Anthropic Messages API.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig, timeout time.Duration) *Provider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *Provider) Name() string  { return "anthropic" }
func (p *Provider) Model() string { return p.cfg.Model }
func (p *Provider) Cloud() bool   { return true }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	if p.cfg.APIKey == "" {
		return "", fmt.Errorf("anthropic: %w", transport.ErrMissingAPIKey)
	}

	var content []block
	if req.Image != nil {
		content = append(content, block{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: req.Image.MimeType,
				Data:      req.Image.Base64,
			},
		})
	}
	content = append(content, block{Type: "text", Text: req.Prompt})

	body := messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: content}},
	}

	header := http.Header{}
	header.Set("x-api-key", p.cfg.APIKey)
	header.Set("anthropic-version", apiVersion)

	var resp messagesResponse
	if err := transport.PostJSON(ctx, p.client, p.cfg.BaseURL+"/v1/messages", header, body, &resp); err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic: %w: no text content", transport.ErrInvalidResponse)
	}
	return sb.String(), nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string  `json:"role"`
	Content []block `json:"content"`
}

type block struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content []block `json:"content"`
}

var _ models.AIProvider = (*Provider)(nil)
