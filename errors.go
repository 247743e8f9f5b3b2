package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

// ErrorCode is a machine-readable error code.
type ErrorCode string

const (
	CodeInvalidArgument  ErrorCode = "invalid_argument"
	CodeUnauthenticated  ErrorCode = "unauthenticated"
	CodePermissionDenied ErrorCode = "permission_denied"
	CodeNotFound         ErrorCode = "not_found"
	CodeMethodNotAllowed ErrorCode = "method_not_allowed"
	CodeConflict         ErrorCode = "conflict"
	CodePayloadTooLarge  ErrorCode = "payload_too_large"
	CodeUnsupportedMedia ErrorCode = "unsupported_media_type"
	CodeCanceled         ErrorCode = "canceled"
	CodeDeadlineExceeded ErrorCode = "deadline_exceeded"
	CodeUnavailable      ErrorCode = "unavailable"
	CodeInternal         ErrorCode = "internal"
)

var statusByCode = map[ErrorCode]int{
	CodeInvalidArgument:  http.StatusBadRequest,
	CodeUnauthenticated:  http.StatusUnauthorized,
	CodePermissionDenied: http.StatusForbidden,
	CodeNotFound:         http.StatusNotFound,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	CodeConflict:         http.StatusConflict,
	CodePayloadTooLarge:  http.StatusRequestEntityTooLarge,
	CodeUnsupportedMedia: http.StatusUnsupportedMediaType,
	CodeCanceled:         499, // client closed request
	CodeDeadlineExceeded: http.StatusGatewayTimeout,
	CodeUnavailable:      http.StatusServiceUnavailable,
	CodeInternal:         http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status of the code. Unknown codes are 500.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := statusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is the JSON error envelope written for failed requests:
//
//	{"error": {"code": "unauthenticated", "message": "..."}}
//
// Handlers may return an *Error to choose the code and status.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError returns an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf returns an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns a copy of e with key set in its details.
func (e *Error) WithDetail(key string, value any) *Error {
	return e.WithDetails(map[string]any{key: value})
}

// WithDetails returns a copy of e with details merged into its details.
func (e *Error) WithDetails(details map[string]any) *Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	return &Error{Code: e.Code, Message: e.Message, Details: merged}
}

// ErrorTransformer maps a handler error to an Error. Returning nil defers to
// DefaultErrorTransformer.
type ErrorTransformer func(error) *Error

// DefaultErrorTransformer maps common errors to an Error:
// an *Error anywhere in the chain is used as is, context errors become
// canceled or deadline_exceeded, validation and form decoding errors become
// invalid_argument with per-field details, and anything else is internal.
func DefaultErrorTransformer(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(CodeDeadlineExceeded, "request timeout")
	case errors.Is(err, context.Canceled):
		return NewError(CodeCanceled, "request canceled")
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		return validationError(valErrs)
	}

	var multi schema.MultiError
	if errors.As(err, &multi) {
		details := make(map[string]any, len(multi))
		msgs := make([]string, 0, len(multi))
		for field, ferr := range multi {
			details[field] = ferr.Error()
			msgs = append(msgs, field+": "+ferr.Error())
		}
		slices.Sort(msgs)
		return &Error{Code: CodeInvalidArgument, Message: strings.Join(msgs, "; "), Details: details}
	}

	return NewError(CodeInternal, err.Error())
}

func validationError(valErrs validator.ValidationErrors) *Error {
	details := make(map[string]any, len(valErrs))
	msgs := make([]string, 0, len(valErrs))
	for _, fe := range valErrs {
		msg := validationMessage(fe)
		details[fe.Field()] = msg
		msgs = append(msgs, fe.Field()+": "+msg)
	}
	return &Error{Code: CodeInvalidArgument, Message: strings.Join(msgs, "; "), Details: details}
}

// validationMessage renders a failed validator tag for humans.
func validationMessage(fe validator.FieldError) string {
	p := fe.Param()
	switch fe.Tag() {
	case "required":
		return "required"
	case "min", "gte":
		return "must be at least " + p
	case "max", "lte":
		return "must be at most " + p
	case "gt":
		return "must be greater than " + p
	case "lt":
		return "must be less than " + p
	case "len":
		return "must have length " + p
	case "eq":
		return "must equal " + p
	case "ne":
		return "must not equal " + p
	case "oneof":
		return "must be one of: " + p
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	}
	if p != "" {
		return fmt.Sprintf("failed %s=%s validation", fe.Tag(), p)
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error *Error `json:"error"`
}

func writeError(w http.ResponseWriter, e *Error, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code.HTTPStatus())
	if err := encodeJSON(w, errorResponse{Error: e}); err != nil {
		// The status is already sent.
		logger.Error("write error response",
			slog.String("code", string(e.Code)),
			slog.String("message", e.Message),
			slog.Any("error", err))
	}
}

// WriteError writes e as an error reply with the status of its code.
func WriteError(w http.ResponseWriter, e *Error) {
	writeError(w, e, slog.Default())
}
