package embedding

import (
	"context"
	"fmt"
	"time"

	"policybot/internal/config"
	"policybot/internal/domain"
	"policybot/internal/embedding/openai"
	"policybot/internal/embedding/tfidf"
)

// BatchEmbedder is implemented by embedders that can vectorize many texts per call.
type BatchEmbedder interface {
	domain.Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// New builds the embedder selected by cfg.Type.
func New(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.OpenAI.BatchSize,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

// EmbedAll vectorizes texts in order, using batch requests when the embedder supports them.
func EmbedAll(ctx context.Context, e domain.Embedder, texts []string) ([][]float64, error) {
	if b, ok := e.(BatchEmbedder); ok {
		return b.EmbedBatch(ctx, texts)
	}
	vectors := make([][]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// IsZero reports whether v carries no signal, e.g. a query made only of unknown terms.
func IsZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
