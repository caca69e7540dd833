package ollama

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

// Provider implements models.AIProvider using a local Ollama server.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig, timeout time.Duration) *Provider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *Provider) Name() string  { return "ollama" }
func (p *Provider) Model() string { return p.cfg.Model }
func (p *Provider) Cloud() bool   { return false }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	body := generateRequest{
		Model:  p.cfg.Model,
		System: req.System,
		Prompt: req.Prompt,
		Stream: false,
		Format: "json",
	}
	if req.Image != nil {
		body.Images = []string{req.Image.Base64}
	}

	var resp generateResponse
	if err := transport.PostJSON(ctx, p.client, p.cfg.BaseURL+"/api/generate", nil, body, &resp); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama: %w: %s", transport.ErrProviderUnavailable, resp.Error)
	}
	if strings.TrimSpace(resp.Response) == "" {
		return "", fmt.Errorf("ollama: %w: empty response", transport.ErrInvalidResponse)
	}
	return resp.Response, nil
}

type generateRequest struct {
	Model  string   `json:"model"`
	System string   `json:"system,omitempty"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
	Format string   `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

var _ models.AIProvider = (*Provider)(nil)
