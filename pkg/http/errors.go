package http

import (
	"fmt"
	"net/http"
)

// Error codes carried in AppError.Code. Validation failures use
// "ERR_" plus the upper-cased validator tag instead.
const (
	CodeBadRequest  = "ERR_BAD_REQUEST"
	CodeNotFound    = "ERR_NOT_FOUND"
	CodeRateLimited = "ERR_RATE_LIMITED"
	CodeInternal    = "ERR_INTERNAL"
)

// AppError is a handler failure that knows the status it is reported under.
// Err is kept for logs and never serialised.
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Err     error  `json:"-"`
}

func NewAppError(status int, code, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// Wrap attaches the cause.
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// OnField names the request field the error refers to.
func (e *AppError) OnField(field string) *AppError {
	e.Field = field
	return e
}

func BadRequestError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, message)
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, fmt.Sprintf(format, a...))
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, CodeRateLimited, message)
}

func InternalError(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternal, message)
}
