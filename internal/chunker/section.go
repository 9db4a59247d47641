package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"policybot/internal/domain"
)

// Sentinel section values for text that precedes the first numbered heading.
const (
	IntroSection = "General/Intro"
	IntroHeading = "N/A"
)

const (
	DefaultMaxLength = 800
	DefaultOverlap   = 100
)

// headingRe matches numbered policy headings such as "1.0 Scope", "15.2 Casual Leave"
// or "15.2.1 Eligibility" on a line of their own.
var headingRe = regexp.MustCompile(`(?m)^(\d+\.\d+(?:\.\d+)?)[ \t]+([A-Z][^\r\n]*)\r?$`)

// Marker is a numbered heading found in a document.
type Marker struct {
	Section string
	Heading string
	Start   int
	End     int
}

// Markers returns the headings of text in document order.
func Markers(text string) []Marker {
	locs := headingRe.FindAllStringSubmatchIndex(text, -1)
	markers := make([]Marker, 0, len(locs))
	for _, loc := range locs {
		markers = append(markers, Marker{
			Section: text[loc[2]:loc[3]],
			Heading: strings.TrimSpace(text[loc[4]:loc[5]]),
			Start:   loc[0],
			End:     loc[1],
		})
	}
	return markers
}

// span is either a run of body text or a heading line.
type span struct {
	text   string
	marker *Marker
}

func partition(text string) []span {
	markers := Markers(text)
	spans := make([]span, 0, 2*len(markers)+1)
	pos := 0
	for i := range markers {
		m := &markers[i]
		if m.Start > pos {
			spans = append(spans, span{text: text[pos:m.Start]})
		}
		spans = append(spans, span{text: text[m.Start:m.End], marker: m})
		pos = m.End
	}
	if pos < len(text) {
		spans = append(spans, span{text: text[pos:]})
	}
	return spans
}

// state is the section a body span belongs to.
type state struct {
	section string
	heading string
}

var intro = state{section: IntroSection, heading: IntroHeading}

// SectionChunker splits documents on numbered headings and tags every chunk
// with the nearest preceding heading.
type SectionChunker struct {
	maxLength int
	overlap   int
}

// NewSectionChunker returns a chunker producing pieces of at most maxLength
// characters with overlap characters shared between neighbours.
func NewSectionChunker(maxLength, overlap int) *SectionChunker {
	maxLength, overlap = normalizeSizes(maxLength, overlap, DefaultMaxLength)
	return &SectionChunker{maxLength: maxLength, overlap: overlap}
}

// Chunk implements domain.Chunker. It never fails.
func (c *SectionChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	return Chunk(document, c.maxLength, c.overlap), nil
}

// Chunk turns one document into an ordered chunk sequence. Heading lines are
// consumed as state and never emitted; text before the first heading is
// tagged with IntroSection/IntroHeading.
func Chunk(document domain.Document, maxLength, overlap int) []domain.Chunk {
	var chunks []domain.Chunk
	current := intro
	for _, sp := range partition(document.Content) {
		if sp.marker != nil {
			current = state{section: sp.marker.Section, heading: sp.marker.Heading}
			continue
		}
		chunks = appendPieces(chunks, document, sp.text, maxLength, overlap, func(md domain.Metadata) {
			md[domain.MetaSection] = current.section
			md[domain.MetaHeading] = current.heading
		})
	}
	return chunks
}

// appendPieces splits body and appends one chunk per non-blank piece.
func appendPieces(chunks []domain.Chunk, document domain.Document, body string, maxLength, overlap int, tag func(domain.Metadata)) []domain.Chunk {
	body = normalizeSpace(body)
	if body == "" {
		return chunks
	}
	for _, piece := range Split(body, maxLength, overlap) {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		md := document.Metadata.Clone()
		if tag != nil {
			tag(md)
		}
		idx := len(chunks)
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    fmt.Sprintf("%s:%d", document.ID, idx),
			Text:       piece,
			Index:      idx,
			Metadata:   md,
		})
	}
	return chunks
}

func normalizeSizes(maxLength, overlap, fallback int) (int, int) {
	if maxLength <= 0 {
		maxLength = fallback
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxLength {
		overlap = maxLength / 4
	}
	return maxLength, overlap
}
