package loader

import (
	"bytes"
	"fmt"
	"io"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFLoader extracts one page of text per PDF page. Page numbers are zero-based.
type PDFLoader struct{}

func (l *PDFLoader) Load(r io.Reader) ([]Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page)
		pages = append(pages, Page{Number: i - 1, Paged: true, Text: text, Err: err})
	}
	return pages, nil
}

// pageText extracts one page. Malformed content streams can panic inside the
// parser; that costs the page, not the document.
func pageText(p pdflib.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("extract page text: %v", r)
		}
	}()
	return p.GetPlainText(nil)
}
