package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/originpoint/internal/model"
)

// NewBackend creates a backend based on configuration
func NewBackend(config Config) (Backend, error) {
	switch strings.ToLower(config.Provider) {
	case "gemini", "google", "":
		return NewGeminiBackend(config)

	case "openai":
		return NewOpenAIBackend(config)

	case "anthropic", "claude":
		return NewAnthropicBackend(config)

	case "ollama":
		return NewOllamaBackend(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: gemini, openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	return Config{
		Provider:   modelConfig.Provider,
		APIKey:     modelConfig.APIKey,
		BaseURL:    modelConfig.BaseURL,
		Timeout:    modelConfig.Timeout,
		MaxTokens:  modelConfig.MaxTokens,
		HTTPProxy:  modelConfig.HTTPProxy,
		HTTPSProxy: modelConfig.HTTPSProxy,
		NoProxy:    modelConfig.NoProxy,
	}
}

// APIKeyEnv returns the environment variables consulted for a provider's key, in order
func APIKeyEnv(provider string) []string {
	switch strings.ToLower(provider) {
	case "gemini", "google", "":
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"}
	case "openai":
		return []string{"OPENAI_API_KEY"}
	case "anthropic", "claude":
		return []string{"ANTHROPIC_API_KEY"}
	default:
		return nil
	}
}
