package chunker

import (
	"regexp"
	"strings"
)

// separators are tried in order when looking for a place to cut. A cut is
// made right after the separator so the separator stays with the left piece.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("? "),
	[]rune("! "),
	[]rune("; "),
	[]rune(" "),
}

// Split breaks text into pieces of at most maxLength characters. Consecutive
// pieces share exactly overlap characters: the tail of one piece is the head
// of the next. Lengths are counted in runes.
func Split(text string, maxLength, overlap int) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if maxLength <= 0 || n <= maxLength {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxLength {
		overlap = maxLength - 1
	}

	var parts []string
	start := 0
	for n-start > maxLength {
		end := cutPoint(runes, start, maxLength, overlap)
		parts = append(parts, string(runes[start:end]))
		start = end - overlap
	}
	return append(parts, string(runes[start:]))
}

// cutPoint returns the exclusive end of the piece starting at start. The end
// always lies in (start+overlap, start+maxLength] so every step makes progress.
func cutPoint(runes []rune, start, maxLength, overlap int) int {
	hi := start + maxLength
	lo := start + maxLength/2
	if lo <= start+overlap {
		lo = start + overlap + 1
	}
	for _, sep := range separators {
		for p := hi; p >= lo; p-- {
			if hasSuffixAt(runes, p, sep) {
				return p
			}
		}
	}
	return hi
}

func hasSuffixAt(runes []rune, end int, sep []rune) bool {
	begin := end - len(sep)
	if begin < 0 {
		return false
	}
	for i, r := range sep {
		if runes[begin+i] != r {
			return false
		}
	}
	return true
}

var (
	horizontalSpaceRe = regexp.MustCompile(`[ \t\f\v]+`)
	lineEdgeSpaceRe   = regexp.MustCompile(` ?\n ?`)
	blankLinesRe      = regexp.MustCompile(`\n{3,}`)
)

// normalizeSpace collapses runs of blanks, strips spaces around line breaks
// and keeps at most one empty line between paragraphs.
func normalizeSpace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = horizontalSpaceRe.ReplaceAllString(s, " ")
	s = lineEdgeSpaceRe.ReplaceAllString(s, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
