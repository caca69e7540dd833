package ai

import (
	"fmt"
	"time"

	"github.com/kiranshivaraju/mealtrack/internal/ai/anthropic"
	"github.com/kiranshivaraju/mealtrack/internal/ai/ollama"
	"github.com/kiranshivaraju/mealtrack/internal/ai/openai"
	"github.com/kiranshivaraju/mealtrack/internal/ai/vllm"
	"github.com/kiranshivaraju/mealtrack/internal/config"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	// The HTTP client timeout is a backstop; Client.Analyze applies cfg.InferenceTimeout per call.
	httpTimeout := cfg.InferenceTimeout + 5*time.Second
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama, httpTimeout), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM, httpTimeout), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI, httpTimeout), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, httpTimeout), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, vllm, openai, anthropic", cfg.Provider)
	}
}
