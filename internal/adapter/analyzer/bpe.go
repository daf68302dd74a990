package analyzer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// BPETokenizer tokenizes text with a tiktoken byte-pair encoding.
//
// A BPE token may end in the middle of a multi-byte rune, so consecutive
// tokens are merged until their decoded bytes form valid UTF-8. Each piece
// returned by Tokenize therefore covers one or more encoder tokens.
type BPETokenizer struct {
	enc      *tiktoken.Tiktoken
	encoding string
}

// NewBPETokenizer loads the named encoding.
func NewBPETokenizer(encoding string) (*BPETokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}
	return &BPETokenizer{enc: enc, encoding: encoding}, nil
}

// Tokenize splits text into decoded token pieces.
func (t *BPETokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	ids := t.enc.Encode(text, nil, nil)
	pieces := make([]string, 0, len(ids))

	var pending strings.Builder
	for _, id := range ids {
		pending.WriteString(t.enc.Decode([]int{id}))
		if utf8.ValidString(pending.String()) {
			pieces = append(pieces, pending.String())
			pending.Reset()
		}
	}
	if pending.Len() > 0 {
		pieces = append(pieces, pending.String())
	}

	return pieces
}

// CountTokens returns the number of encoder tokens in text.
func (t *BPETokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Encoding returns the name of the loaded encoding.
func (t *BPETokenizer) Encoding() string {
	return t.encoding
}
