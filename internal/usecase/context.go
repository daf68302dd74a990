package usecase

import (
	"strings"

	"docrag/internal/domain"
)

// BuildContext renders ranked chunks as prompt context, one chunk per
// line in rank order: "[category - year] content". No chunks yields "".
func BuildContext(chunks []domain.ScoredChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, sc := range chunks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteByte('[')
		sb.WriteString(sc.Chunk.Category)
		sb.WriteString(" - ")
		sb.WriteString(sc.Chunk.Year)
		sb.WriteString("] ")
		sb.WriteString(sc.Chunk.Content)
	}
	return sb.String()
}
