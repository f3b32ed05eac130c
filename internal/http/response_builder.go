package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	applog "expenso/internal/log"
	"expenso/internal/report"
	"expenso/internal/services"
	"expenso/internal/storage"
	"expenso/internal/users"
)

// ResponseBuilder assembles a JSON response. Handlers build one and call
// Write exactly once.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
	raw        []byte
}

type messageBody struct {
	Message string `json:"message"`
}

func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets a value to be encoded as the body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Raw sets a pre-rendered body with its content type.
func (b *ResponseBuilder) Raw(contentType string, body []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.raw = body
	return b
}

// Attachment asks the client to save the body as filename.
func (b *ResponseBuilder) Attachment(filename string) *ResponseBuilder {
	return b.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	switch {
	case b.raw != nil:
		w.WriteHeader(b.statusCode)
		_, _ = w.Write(b.raw)
	case b.body != nil:
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(b.statusCode)
		_ = json.NewEncoder(w).Encode(b.body)
	default:
		w.WriteHeader(b.statusCode)
	}
}

// ErrorResponse builds the {"message": ...} body every error uses.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(messageBody{Message: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "Internal server error")
}

// errorFor maps a service error to its response. Unknown errors are
// logged and hidden behind a 500.
func errorFor(ctx context.Context, err error) *ResponseBuilder {
	var body *bodyError
	switch {
	case errors.As(err, &body):
		return BadRequestError(body.Error())
	case errors.Is(err, report.ErrInvalidParams):
		return BadRequestError(err.Error())
	case errors.Is(err, users.ErrUserExists):
		return BadRequestError("User already exists")
	case errors.Is(err, users.ErrInvalidSignup):
		return BadRequestError(strings.ReplaceAll(err.Error(), "\n", ": "))
	case errors.Is(err, users.ErrInvalidCredentials):
		return UnauthorizedError("Invalid credentials")
	case errors.Is(err, users.ErrUserNotFound):
		return NotFoundError("User not found")
	case errors.Is(err, services.ErrInvalidExpense):
		return UnprocessableEntityError(err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return NotFoundError("Not found")
	case errors.Is(err, storage.ErrDuplicate):
		return ErrorResponse(http.StatusConflict, "Expense already exists")
	case errors.Is(err, context.DeadlineExceeded):
		applog.FromContext(ctx).WarnContext(ctx, "Request timed out", applog.FieldError, err)
		return ErrorResponse(http.StatusServiceUnavailable, "Request timed out")
	default:
		applog.FromContext(ctx).ErrorContext(ctx, "Request failed", applog.FieldError, err)
		return InternalServerError()
	}
}
