package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered),
// optionally biased towards sentences that share terms with a query.
type FrequencySummarizer struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
	queryWeight  float64
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern: regexp.MustCompile(`\d+(?:\.\d+)+|[\p{L}\p{N}]+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
		queryWeight:  2,
	}
}

// Summarize returns up to maxSentences sentences of text in their original
// order. With a non-empty query, sentences covering more query terms rank higher.
func (s *FrequencySummarizer) Summarize(text, query string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	freq := map[string]float64{}
	tokens := make([][]string, len(sentences))
	for i, sent := range sentences {
		tokens[i] = s.tokens(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	qterms := map[string]struct{}{}
	for _, tok := range s.tokens(query) {
		qterms[tok] = struct{}{}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	best := 0.0
	for i, toks := range tokens {
		sscore := 0.0
		for _, tok := range toks {
			sscore += freq[tok]
		}
		// length-normalized to avoid favouring long sentences
		if l := float64(len(toks)); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = pair{i, sscore}
		best = math.Max(best, sscore)
	}
	for i := range scores {
		if best > 0 {
			scores[i].score /= best
		}
		scores[i].score += s.queryWeight * coverage(tokens[i], qterms)
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}

	selected := make([]int, maxSentences)
	for i := 0; i < maxSentences; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

// Coverage reports the fraction of distinct query terms that occur in text.
func (s *FrequencySummarizer) Coverage(text, query string) float64 {
	qterms := map[string]struct{}{}
	for _, tok := range s.tokens(query) {
		qterms[tok] = struct{}{}
	}
	return coverage(s.tokens(text), qterms)
}

func coverage(toks []string, qterms map[string]struct{}) float64 {
	if len(qterms) == 0 {
		return 0
	}
	hit := map[string]struct{}{}
	for _, tok := range toks {
		if _, ok := qterms[tok]; ok {
			hit[tok] = struct{}{}
		}
	}
	return float64(len(hit)) / float64(len(qterms))
}

func (s *FrequencySummarizer) tokens(text string) []string {
	raw := s.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, ok := s.stopwords[t]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

// splitSentences breaks text at sentence punctuation followed by whitespace
// and at blank lines. Decimal section numbers like "15.2" are not boundaries.
func splitSentences(text string) []string {
	var out []string
	flush := func(s string) {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" {
			out = append(out, s)
		}
	}
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '.' || r == '!' || r == '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush(string(runes[start : i+1]))
				start = i + 1
			}
		case r == '\n' && i+1 < len(runes) && runes[i+1] == '\n':
			flush(string(runes[start:i]))
			start = i + 1
		}
	}
	if start < len(runes) {
		flush(string(runes[start:]))
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "how", "when", "where", "do", "does", "did", "i", "me", "my", "we", "our", "you", "your", "am", "have", "has", "had",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
