package domain

import (
	"context"
	"fmt"
	"strconv"
)

// Metadata keys shared by loaders, chunkers and stores.
const (
	MetaSource  = "source"
	MetaPage    = "page"
	MetaPath    = "path"
	MetaSection = "section"
	MetaHeading = "heading"
)

// Metadata is a small bag of citation attributes. Values are strings or ints.
type Metadata map[string]any

// Clone returns a shallow copy that can be extended without touching the original.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the value under key rendered as text, or "" if absent.
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Document represents one loaded unit of policy text (a PDF page or a whole DOCX file).
type Document struct {
	ID       string
	Path     string
	Content  string
	Metadata Metadata
}

// Chunk is a bounded piece of a document used for indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
	Metadata   Metadata
}

// Source returns the document name the chunk came from.
func (c Chunk) Source() string {
	if s := c.Metadata.String(MetaSource); s != "" {
		return s
	}
	return "Unknown"
}

// Section returns the section id, "N/A" when untagged.
func (c Chunk) Section() string {
	if s := c.Metadata.String(MetaSection); s != "" {
		return s
	}
	return "N/A"
}

// Heading returns the section heading, "N/A" when untagged.
func (c Chunk) Heading() string {
	if s := c.Metadata.String(MetaHeading); s != "" {
		return s
	}
	return "N/A"
}

// Citation renders "source | Sec section - heading".
func (c Chunk) Citation() string {
	return fmt.Sprintf("%s | Sec %s - %s", c.Source(), c.Section(), c.Heading())
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Answer is a generated reply plus the citations of the chunks it was grounded on.
type Answer struct {
	Question string
	Text     string
	Sources  []string
	Results  []SearchResult
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorStore persists vectors and supports similarity search.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	Clear(ctx context.Context) error
}

// Summarizer produces a brief summary of the provided text, biased towards query terms when query is non-empty.
type Summarizer interface {
	Summarize(text, query string, maxSentences int) (string, error)
}

// Generator answers a question grounded on retrieved chunks.
type Generator interface {
	Name() string
	Generate(ctx context.Context, question string, results []SearchResult) (string, error)
}
