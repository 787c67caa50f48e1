// Package apperror defines the error taxonomy shared by all domain services
// and the echo error handler that maps it onto HTTP responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindDenied
	KindConflict
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Denied reports an authorization failure. Never retried.
func Denied(reason string) error {
	return &Error{Kind: KindDenied, Message: reason}
}

// Conflict reports a state-machine precondition violation, distinct from an
// authorization failure.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing resource.
func NotFound(resource string) error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Validation reports malformed or incomplete input.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected error.
func Internal(err error) error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

var statusByKind = map[Kind]int{
	KindValidation: http.StatusBadRequest,
	KindNotFound:   http.StatusNotFound,
	KindDenied:     http.StatusForbidden,
	KindConflict:   http.StatusConflict,
	KindInternal:   http.StatusInternalServerError,
}

var codeByKind = map[Kind]string{
	KindValidation: "validation_failed",
	KindNotFound:   "not_found",
	KindDenied:     "forbidden",
	KindConflict:   "state_conflict",
	KindInternal:   "internal",
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// HTTPErrorHandler returns an echo error handler that renders classified
// errors as JSON envelopes. echo.HTTPErrors pass through with their status;
// everything else is a 500 whose detail is logged but not exposed.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := errorBody{Code: codeByKind[KindInternal], Message: "internal error"}

		var appErr *Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			status = statusByKind[appErr.Kind]
			body = errorBody{Code: codeByKind[appErr.Kind], Message: appErr.Message}
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body = errorBody{Code: http.StatusText(status), Message: fmt.Sprintf("%v", httpErr.Message)}
		}

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, errorEnvelope{Error: body})
	}
}
