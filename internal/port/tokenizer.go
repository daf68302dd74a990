package port

// Tokenizer splits text into lossless token pieces: joining the pieces
// returned by Tokenize must reproduce the input exactly.
type Tokenizer interface {
	Tokenize(text string) []string

	CountTokens(text string) int
}
