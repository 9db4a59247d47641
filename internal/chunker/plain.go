package chunker

import "policybot/internal/domain"

const (
	DefaultPlainMaxLength = 1000
	DefaultPlainOverlap   = 200
)

// PlainChunker splits whole documents by length only. Chunks carry the
// document metadata without section attribution.
type PlainChunker struct {
	maxLength int
	overlap   int
}

func NewPlainChunker(maxLength, overlap int) *PlainChunker {
	maxLength, overlap = normalizeSizes(maxLength, overlap, DefaultPlainMaxLength)
	return &PlainChunker{maxLength: maxLength, overlap: overlap}
}

func (c *PlainChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	return appendPieces(nil, document, document.Content, c.maxLength, c.overlap, nil), nil
}
