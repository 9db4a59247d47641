package loader

import "io"

// TextLoader handles plain text files.
type TextLoader struct{}

func (l *TextLoader) Load(r io.Reader) ([]Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return []Page{{Text: string(data)}}, nil
}
