package llm

import (
	"context"
	"errors"
	"testing"

	"policybot/internal/config"
	"policybot/internal/logging"
	"policybot/internal/summarizer"
)

func TestNew(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "")
	sum := summarizer.NewFrequencySummarizer()
	ctx := context.Background()

	gen, err := New(ctx, config.LLMConfig{Type: "extractive"}, sum, logging.Discard())
	if err != nil || gen.Name() != "extractive" {
		t.Fatalf("expected extractive generator, got %v (%v)", gen, err)
	}

	for _, typ := range []string{"openai", "anthropic", "gemini"} {
		_, err := New(ctx, config.LLMConfig{Type: typ, APIKeyEnv: "TEST_LLM_KEY"}, sum, logging.Discard())
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("%s: expected ErrMissingAPIKey, got %v", typ, err)
		}
	}

	t.Setenv("TEST_LLM_KEY", "k")
	gen, err = New(ctx, config.LLMConfig{Type: "openai", APIKeyEnv: "TEST_LLM_KEY", Model: "llama"}, sum, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := gen.(*Guard); !ok {
		t.Errorf("expected remote provider wrapped in Guard, got %T", gen)
	}
	if gen.Name() != "openai:llama" {
		t.Errorf("unexpected name %q", gen.Name())
	}

	if _, err := New(ctx, config.LLMConfig{Type: "cohere"}, sum, logging.Discard()); err == nil {
		t.Error("expected error for unknown provider")
	}
}
