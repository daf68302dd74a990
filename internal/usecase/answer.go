package usecase

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"docrag/internal/domain"
	"docrag/internal/port"
)

//go:embed templates/answer.tmpl
var templateFS embed.FS

var answerTemplate = template.Must(template.ParseFS(templateFS, "templates/answer.tmpl"))

// AnswerRequest is a question with optional metadata filters.
type AnswerRequest struct {
	Question string
	Category string
	Year     string
	TopK     int
}

// AnswerUseCase answers questions from retrieved document context.
type AnswerUseCase struct {
	retrieve  *RetrieveUseCase
	generator port.Generator
}

func NewAnswerUseCase(retrieve *RetrieveUseCase, generator port.Generator) *AnswerUseCase {
	return &AnswerUseCase{
		retrieve:  retrieve,
		generator: generator,
	}
}

// Answer retrieves context for the question and asks the generator. When
// there is no context the generator is not called and the answer is
// domain.NoRelevantDocuments.
func (u *AnswerUseCase) Answer(ctx context.Context, req AnswerRequest) (domain.Answer, error) {
	chunks, err := u.retrieve.Retrieve(ctx, domain.Query{
		Text:    req.Question,
		Filters: domain.Filters{Category: req.Category, Year: req.Year},
		TopK:    req.TopK,
	})
	if err != nil {
		var degenerate *domain.DegenerateVectorError
		if !errors.As(err, &degenerate) {
			return domain.Answer{}, err
		}
		slog.Warn("query could not be scored", "error", err)
		chunks = nil
	}

	docContext := BuildContext(chunks)
	if docContext == "" {
		return domain.Answer{Answer: domain.NoRelevantDocuments}, nil
	}

	prompt, err := RenderPrompt(docContext, req.Question)
	if err != nil {
		return domain.Answer{}, err
	}

	text, err := u.generator.Generate(ctx, prompt)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	return domain.Answer{Answer: text, Sources: chunks}, nil
}

// RenderPrompt fills the answer prompt with context and question.
func RenderPrompt(docContext, question string) (string, error) {
	var sb strings.Builder
	err := answerTemplate.Execute(&sb, struct {
		Context  string
		Question string
	}{
		Context:  docContext,
		Question: question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return sb.String(), nil
}
