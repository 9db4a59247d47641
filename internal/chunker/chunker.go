package chunker

import (
	"fmt"

	"policybot/internal/config"
	"policybot/internal/domain"
)

// New builds the chunker selected in cfg.
func New(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "section", "":
		return NewSectionChunker(cfg.MaxLength, cfg.Overlap), nil
	case "plain":
		return NewPlainChunker(cfg.MaxLength, cfg.Overlap), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}
