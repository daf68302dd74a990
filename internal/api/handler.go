package api

import (
	"sync"

	"github.com/gofiber/fiber/v2"

	"docrag/internal/usecase"
)

type CheckHandler struct{}

func NewCheckHandler() *CheckHandler {
	return &CheckHandler{}
}

func (h CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok"})
}

// RequestHandler serves questions, searches and ingestion runs.
type RequestHandler struct {
	answer   *usecase.AnswerUseCase
	retrieve *usecase.RetrieveUseCase
	ingest   *usecase.IngestUseCase
	docsRoot string

	ingestMu sync.Mutex
}

func NewRequestHandler(
	answer *usecase.AnswerUseCase,
	retrieve *usecase.RetrieveUseCase,
	ingest *usecase.IngestUseCase,
	docsRoot string,
) *RequestHandler {
	return &RequestHandler{
		answer:   answer,
		retrieve: retrieve,
		ingest:   ingest,
		docsRoot: docsRoot,
	}
}

func (h *RequestHandler) HandleQuery(c *fiber.Ctx) error {
	var params QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	ans, err := h.answer.Answer(c.UserContext(), usecase.AnswerRequest{
		Question: params.Question,
		Category: params.Category,
		Year:     params.Year,
		TopK:     params.TopK,
	})
	if err != nil {
		return err
	}

	return c.JSON(newAnswerResponse(ans))
}

func (h *RequestHandler) HandleSearch(c *fiber.Ctx) error {
	var params QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	chunks, err := h.retrieve.Retrieve(c.UserContext(), params.query())
	if err != nil {
		return err
	}

	return c.JSON(SearchResponse{Results: usecase.ToResults(chunks, true)})
}

// HandleProcessDocs runs one ingestion of the documents root. Only one run
// is served at a time; a second request gets 409.
func (h *RequestHandler) HandleProcessDocs(c *fiber.Ctx) error {
	if !h.ingestMu.TryLock() {
		return ErrIngestRunning()
	}
	defer h.ingestMu.Unlock()

	summary, err := h.ingest.Ingest(c.UserContext(), h.docsRoot)
	if err != nil {
		return err
	}

	return c.JSON(newIngestResponse(summary))
}
