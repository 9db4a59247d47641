package tfidf

import (
	"context"
	"math"
	"testing"
)

func TestEmbedder_PrepareAndEmbed(t *testing.T) {
	e := NewEmbedder()
	if _, err := e.Embed(context.Background(), "leave"); err == nil {
		t.Fatal("expected error before Prepare")
	}
	corpus := []string{
		"Employees are entitled to 12 days of casual leave per year.",
		"Travel claims must be submitted within 30 days.",
		"Section 15.2 covers casual leave carry forward.",
	}
	if err := e.Prepare(corpus); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if e.Dimension() == 0 {
		t.Fatal("expected non-zero dimension")
	}

	vec, err := e.Embed(context.Background(), "casual leave")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != e.Dimension() {
		t.Fatalf("expected %d dims, got %d", e.Dimension(), len(vec))
	}
	sum := 0.0
	for _, v := range vec {
		sum += v * v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("expected unit vector, got norm^2 %f", sum)
	}
}

func TestEmbedder_UnknownTermsGiveZeroVector(t *testing.T) {
	e := NewEmbedder()
	if err := e.Prepare([]string{"casual leave policy"}); err != nil {
		t.Fatal(err)
	}
	vec, err := e.Embed(context.Background(), "what is the")
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatalf("expected zero vector, got %v", vec)
		}
	}
}

func TestTokenize(t *testing.T) {
	e := NewEmbedder()
	tests := []struct {
		in   string
		want []string
	}{
		{"What does 15.2 say?", []string{"15.2", "say"}},
		{"Employee's 12 days", []string{"employee's", "12", "day"}},
		{"Leaves and policies", []string{"leave", "policy"}},
		{"Business class", []string{"business", "class"}},
		{"Sec 4.1.3 Overtime", []string{"sec", "4.1.3", "overtime"}},
		{"", nil},
	}
	for _, tt := range tests {
		got := e.tokenize(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("%q: expected %v, got %v", tt.in, tt.want, got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%q: expected %v, got %v", tt.in, tt.want, got)
				break
			}
		}
	}
}

func TestPrepare_EmptyCorpus(t *testing.T) {
	if err := NewEmbedder().Prepare(nil); err == nil {
		t.Error("expected error for empty corpus")
	}
	if err := NewEmbedder().Prepare([]string{"the and of"}); err == nil {
		t.Error("expected error for stopword-only corpus")
	}
}

func TestEmbedder_PluralsShareTerms(t *testing.T) {
	e := NewEmbedder()
	if err := e.Prepare([]string{"Casual leave rules", "Travel claims"}); err != nil {
		t.Fatal(err)
	}
	a, _ := e.Embed(context.Background(), "leaves")
	b, _ := e.Embed(context.Background(), "leave")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical vectors for plural and singular")
		}
	}
}
