// CLAUDE:SUMMARY Factory that builds the LLM Client from config — local inference service first, hosted fallbacks only when keyed
package llm

import "github.com/opaline/dbbridge/internal/config"

// NewFromConfig creates the multi-provider LLM client. The local inference
// service is always first in the fallback chain; hosted providers are
// activated only when an API key is configured.
func NewFromConfig(cfg config.LLMConfig) *Client {
	var providers []Provider

	if cfg.BaseURL != "" {
		providers = append(providers, NewOpenAIProvider(OpenAIConfig{
			Name:         "local",
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.Model,
		}))
	}

	if cfg.GroqAPIKey != "" {
		providers = append(providers, NewOpenAIProvider(OpenAIConfig{
			Name:         "groq",
			BaseURL:      "https://api.groq.com/openai/v1",
			APIKey:       cfg.GroqAPIKey,
			DefaultModel: "llama-3.3-70b-versatile",
		}))
	}

	if cfg.OpenRouterKey != "" {
		providers = append(providers, NewOpenAIProvider(OpenAIConfig{
			Name:         "openrouter",
			BaseURL:      "https://openrouter.ai/api/v1",
			APIKey:       cfg.OpenRouterKey,
			DefaultModel: "deepseek/deepseek-chat",
		}))
	}

	return New(providers)
}
