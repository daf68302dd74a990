package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"docrag/internal/domain"
)

// ErrorHandler renders every error returned by a handler as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}

	var valErr ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}

	apiErr = fromError(err)
	slog.Error("request failed",
		"method", c.Method(),
		"path", c.Path(),
		"code", apiErr.Code,
		"error", err,
	)
	return c.Status(apiErr.Code).JSON(apiErr)
}

func fromError(err error) Error {
	var (
		fiberErr *fiber.Error
		embErr   *domain.EmbeddingError
		storeErr *domain.StoreError
	)
	switch {
	case errors.As(err, &fiberErr):
		return NewError(fiberErr.Code, fiberErr.Message)
	case errors.As(err, &embErr):
		return NewError(fiber.StatusBadGateway, err.Error())
	case errors.As(err, &storeErr):
		return NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return NewError(fiber.StatusInternalServerError, err.Error())
	}
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e Error) Error() string {
	return e.Message
}

func NewError(code int, msg string) Error {
	return Error{
		Code:    code,
		Message: msg,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrIngestRunning() Error {
	return Error{
		Code:    fiber.StatusConflict,
		Message: "an ingestion run is already in progress",
	}
}
