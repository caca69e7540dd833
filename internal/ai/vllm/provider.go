package vllm

import (
	"time"

	"github.com/kiranshivaraju/mealtrack/internal/ai/openai"
	"github.com/kiranshivaraju/mealtrack/internal/config"
)

// NewProvider returns a local provider for a vLLM server. vLLM exposes the
// OpenAI chat completions API, so the OpenAI wire client is reused without a key.
func NewProvider(cfg config.VLLMConfig, timeout time.Duration) *openai.Provider {
	return openai.NewCompatible("vllm", cfg.BaseURL, "", cfg.Model, false, timeout)
}
