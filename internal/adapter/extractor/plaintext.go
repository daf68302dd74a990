package extractor

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var _ port.TextExtractor = (*PlainText)(nil)

// PlainText reads text and markdown files. Blank lines separate
// paragraphs; lines within a paragraph are kept as they are.
type PlainText struct{}

func NewPlainText() *PlainText {
	return &PlainText{}
}

func (p *PlainText) Extensions() []string {
	return []string{".txt", ".md"}
}

func (p *PlainText) ExtractText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}
	if !utf8.Valid(data) {
		return "", &domain.ExtractionError{Path: path, Err: errInvalidUTF8}
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, "\n"))
			current = current[:0]
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return joinParagraphs(paragraphs), nil
}
