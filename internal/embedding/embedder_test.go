package embedding

import (
	"context"
	"testing"

	"policybot/internal/config"
	"policybot/internal/embedding/tfidf"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmbedderConfig
		want    string
		wantErr bool
	}{
		{name: "default", cfg: config.EmbedderConfig{}, want: "tfidf"},
		{name: "tfidf", cfg: config.EmbedderConfig{Type: "tfidf"}, want: "tfidf"},
		{name: "openai without block", cfg: config.EmbedderConfig{Type: "openai"}, wantErr: true},
		{name: "unknown", cfg: config.EmbedderConfig{Type: "bert"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if e.Name() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, e.Name())
			}
		})
	}
}

func TestEmbedAll_Sequential(t *testing.T) {
	e := tfidf.NewEmbedder()
	texts := []string{"annual leave", "sick leave", "travel policy"}
	if err := e.Prepare(texts); err != nil {
		t.Fatal(err)
	}
	vecs, err := EmbedAll(context.Background(), e, texts)
	if err != nil {
		t.Fatalf("embed all: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vecs))
	}
	for i, v := range vecs {
		if IsZero(v) {
			t.Errorf("vector %d is zero", i)
		}
	}
}

func TestEmbedAll_Cancelled(t *testing.T) {
	e := tfidf.NewEmbedder()
	if err := e.Prepare([]string{"leave"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := EmbedAll(ctx, e, []string{"leave"}); err == nil {
		t.Error("expected context error")
	}
}

func TestIsZero(t *testing.T) {
	if !IsZero(nil) || !IsZero([]float64{0, 0}) {
		t.Error("expected zero")
	}
	if IsZero([]float64{0, 0.1}) {
		t.Error("expected non-zero")
	}
}
