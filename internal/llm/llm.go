// Package llm turns retrieved policy chunks into answers using a hosted
// model or an offline extractive fallback.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"policybot/internal/config"
	"policybot/internal/domain"
)

// New builds the generator selected by cfg.Type. Remote providers are wrapped in a Guard.
func New(ctx context.Context, cfg config.LLMConfig, s Scorer, log *slog.Logger) (domain.Generator, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	var gen domain.Generator
	switch cfg.Type {
	case "extractive":
		return NewExtractive(s, cfg.MaxSentences), nil
	case "openai", "":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, missingKey(cfg.APIKeyEnv)
		}
		gen = NewOpenAIClient(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      key,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		})
	case "anthropic":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, missingKey(cfg.APIKeyEnv)
		}
		gen = NewAnthropicClient(cfg.BaseURL, key, cfg.Model, cfg.Temperature, cfg.MaxTokens, timeout)
	case "gemini":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, missingKey(cfg.APIKeyEnv)
		}
		g, err := NewGeminiClient(ctx, key, cfg.Model, cfg.Temperature, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		gen = g
	default:
		return nil, fmt.Errorf("unknown llm type: %s", cfg.Type)
	}
	log.Info("llm configured", "provider", gen.Name())
	return NewGuard(gen, cfg.RequestsPerMinute, log.With("component", "llm")), nil
}
