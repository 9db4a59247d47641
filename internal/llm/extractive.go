package llm

import (
	"context"
	"strings"

	"policybot/internal/domain"
)

// Scorer is the part of a summarizer Extractive needs to judge relevance.
type Scorer interface {
	domain.Summarizer
	Coverage(text, query string) float64
}

// Extractive answers offline by quoting the retrieved sentences most related
// to the question, followed by a single citation.
type Extractive struct {
	summarizer   Scorer
	maxSentences int
	minCoverage  float64
}

func NewExtractive(s Scorer, maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 4
	}
	return &Extractive{summarizer: s, maxSentences: maxSentences, minCoverage: 0.25}
}

func (e *Extractive) Name() string { return "extractive" }

func (e *Extractive) Generate(ctx context.Context, question string, results []domain.SearchResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var relevant []domain.SearchResult
	for _, r := range results {
		if e.summarizer.Coverage(r.Chunk.Text+" "+r.Chunk.Heading(), question) >= e.minCoverage {
			relevant = append(relevant, r)
		}
	}
	if len(relevant) == 0 {
		return NotFoundAnswer, nil
	}
	texts := make([]string, len(relevant))
	for i, r := range relevant {
		texts[i] = r.Chunk.Text
	}
	summary, err := e.summarizer.Summarize(strings.Join(texts, "\n\n"), question, e.maxSentences)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(summary) == "" {
		return NotFoundAnswer, nil
	}
	return summary + "\n\nSource: " + relevant[0].Chunk.Citation(), nil
}
