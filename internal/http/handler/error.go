package handler

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"

	"docvault/internal/http/middleware"
	"docvault/internal/logging"
	"docvault/internal/repository"
	"docvault/internal/service"
	"docvault/internal/upload"
)

// Error kinds carried in the "kind" field of every error body.
const (
	KindValidation   = "VALIDATION"
	KindNotFound     = "NOT_FOUND"
	KindStorage      = "STORAGE_ERROR"
	KindRepository   = "REPOSITORY_ERROR"
	KindUnauthorized = "UNAUTHORIZED"
	KindUnavailable  = "SERVICE_UNAVAILABLE"
	KindInternal     = "INTERNAL_ERROR"
)

// errorPayload is the error body shared by every endpoint.
type errorPayload struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id"`
}

// writeError writes the JSON error body. message must be safe to show to clients.
func writeError(c *fiber.Ctx, status int, kind, message string) error {
	return c.Status(status).JSON(errorPayload{
		Error:     message,
		Kind:      kind,
		RequestID: middleware.RequestIDFrom(c),
	})
}

// respondError classifies a service error. Only validation reasons reach the client verbatim;
// everything else gets a fixed message and the cause goes to the log.
func respondError(c *fiber.Ctx, err error, internalMessage string) error {
	var verr *upload.ValidationError
	switch {
	case errors.As(err, &verr):
		return writeError(c, fiber.StatusBadRequest, KindValidation, verr.Reason)
	case errors.Is(err, service.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, KindNotFound, "resource not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		return writeError(c, fiber.StatusUnauthorized, KindUnauthorized, "invalid credentials")
	}

	logging.Component("http").Error(internalMessage,
		"request_id", middleware.RequestIDFrom(c),
		"path", c.Path(),
		"error", err.Error(),
	)
	switch {
	case errors.Is(err, service.ErrStorage):
		return writeError(c, fiber.StatusInternalServerError, KindStorage, internalMessage)
	case errors.Is(err, service.ErrRepository):
		return writeError(c, fiber.StatusInternalServerError, KindRepository, internalMessage)
	default:
		return writeError(c, fiber.StatusInternalServerError, KindInternal, internalMessage)
	}
}

// ErrorHandler returns a Fiber global error handler that maps framework errors to the error body.
// Bodies over the server limit surface here as 413 and are answered as an oversized file (400).
func ErrorHandler(maxFileSize int64) fiber.ErrorHandler {
	tooLarge := fmt.Sprintf("file too large (max %s)", humanize.IBytes(uint64(maxFileSize)))

	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, KindValidation, "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, KindNotFound, "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, KindValidation, "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, fiber.StatusBadRequest, KindValidation, tooLarge)
		default:
			logging.Component("http").Error("unhandled error",
				"request_id", middleware.RequestIDFrom(c),
				"path", c.Path(),
				"error", err.Error(),
			)
			return writeError(c, status, KindInternal, "internal server error")
		}
	}
}
