// Package app assembles a PolicyService from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"policybot/internal/chunker"
	"policybot/internal/config"
	"policybot/internal/domain"
	"policybot/internal/embedding"
	"policybot/internal/llm"
	"policybot/internal/service"
	"policybot/internal/summarizer"
	"policybot/internal/vectorstore"
)

// NewService wires the chunker, embedder, vector store and generator selected by cfg.
func NewService(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*service.PolicyService, error) {
	ch, err := chunker.New(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	newEmbedder := func() (domain.Embedder, error) { return embedding.New(cfg.Embedder) }
	emb, err := newEmbedder()
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	st, err := vectorstore.New(cfg.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	gen, err := llm.New(ctx, cfg.LLM, summarizer.NewFrequencySummarizer(), log)
	if err != nil {
		return nil, err
	}
	log.Info("components ready",
		"chunker", cfg.Chunker.Type,
		"max_length", cfg.Chunker.MaxLength,
		"overlap", cfg.Chunker.Overlap,
		"embedder", emb.Name(),
		"vector_store", cfg.VectorStore.Type,
		"llm", gen.Name(),
	)
	return service.NewPolicyService(service.Options{
		DataDir:  cfg.DataDir,
		IndexDir: cfg.IndexDir,
		TopK:     cfg.Retrieval.TopK,
	}, ch, newEmbedder, st, gen, log), nil
}

// LoadConfig reads path, or the default locations when path is empty, and validates it.
func LoadConfig(path string) (*config.AppConfig, string, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if path == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, path, nil
}
