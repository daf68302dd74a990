package api

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

var validate = validator.New()

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

// QueryParams is the body of both /query and /search.
type QueryParams struct {
	Question string `json:"question" validate:"required"`
	Category string `json:"category,omitempty"`
	Year     string `json:"year,omitempty"`
	TopK     int    `json:"top_k,omitempty" validate:"gte=0,lte=100"`
}

func (params *QueryParams) Validate() map[string]string {
	if err := validate.Struct(params); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			return map[string]string{"body": err.Error()}
		}
		fieldErrs := make(map[string]string)
		for _, e := range errs {
			fieldErrs[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return fieldErrs
	}
	return nil
}

func (params *QueryParams) query() domain.Query {
	return domain.Query{
		Text:    params.Question,
		Filters: domain.Filters{Category: params.Category, Year: params.Year},
		TopK:    params.TopK,
	}
}

type Source struct {
	Category string  `json:"category"`
	Year     string  `json:"year"`
	FilePath string  `json:"filepath"`
	Score    float64 `json:"score"`
}

type AnswerResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

type SearchResponse struct {
	Results []usecase.ScoredChunkResult `json:"results"`
}

type FileErrorResponse struct {
	FilePath string `json:"filepath"`
	Error    string `json:"error"`
}

type IngestResponse struct {
	RunID          string              `json:"run_id"`
	FilesProcessed int                 `json:"files_processed"`
	FilesSkipped   int                 `json:"files_skipped"`
	ChunksInserted int                 `json:"chunks_inserted"`
	Errors         []FileErrorResponse `json:"errors"`
}

func newAnswerResponse(ans domain.Answer) AnswerResponse {
	sources := make([]Source, len(ans.Sources))
	for i, sc := range ans.Sources {
		sources[i] = Source{
			Category: sc.Chunk.Category,
			Year:     sc.Chunk.Year,
			FilePath: sc.Chunk.FilePath,
			Score:    sc.Score,
		}
	}
	return AnswerResponse{Answer: ans.Answer, Sources: sources}
}

func newIngestResponse(s *domain.IngestSummary) IngestResponse {
	errs := make([]FileErrorResponse, len(s.Errors))
	for i, fe := range s.Errors {
		errs[i] = FileErrorResponse{FilePath: fe.FilePath, Error: fe.Cause.Error()}
	}
	return IngestResponse{
		RunID:          s.RunID.String(),
		FilesProcessed: s.FilesProcessed,
		FilesSkipped:   s.FilesSkipped,
		ChunksInserted: s.ChunksInserted,
		Errors:         errs,
	}
}
