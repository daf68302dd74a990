package analyzer

import (
	"fmt"
	"unicode"

	"docrag/internal/port"
)

const (
	SchemeBPE  = "bpe"
	SchemeWord = "word"
)

// New returns the tokenizer for the named scheme.
func New(scheme, encoding string) (port.Tokenizer, error) {
	switch scheme {
	case "", SchemeBPE:
		return NewBPETokenizer(encoding)
	case SchemeWord:
		return NewWordTokenizer(), nil
	default:
		return nil, fmt.Errorf("unsupported tokenizer scheme: %s", scheme)
	}
}

// WordTokenizer splits text into words, whitespace runs and single
// punctuation runes. It needs no model files and never drops input.
type WordTokenizer struct{}

// NewWordTokenizer creates a new WordTokenizer.
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{}
}

// Tokenize splits text into tokens.
func (t *WordTokenizer) Tokenize(text string) []string {
	var tokens []string
	start := -1
	var kind runeKind

	for i, r := range text {
		k := classify(r)
		if start >= 0 && (k != kind || k == kindOther) {
			tokens = append(tokens, text[start:i])
			start = -1
		}
		if start < 0 {
			start = i
			kind = k
		}
	}
	if start >= 0 {
		tokens = append(tokens, text[start:])
	}

	return tokens
}

// CountTokens returns the number of tokens in text.
func (t *WordTokenizer) CountTokens(text string) int {
	return len(t.Tokenize(text))
}

type runeKind int

const (
	kindWord runeKind = iota
	kindSpace
	kindOther
)

func classify(r rune) runeKind {
	switch {
	case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
		return kindWord
	case unicode.IsSpace(r):
		return kindSpace
	default:
		return kindOther
	}
}
