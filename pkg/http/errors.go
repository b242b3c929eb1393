package http

import (
	"fmt"
	"net/http"
)

// AppError is an application-level error carrying an HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// BadRequestError creates a 400 error.
func BadRequestError(message string) *AppError {
	return &AppError{Code: "ERR_BAD_REQUEST", Message: message, Status: http.StatusBadRequest}
}

// NotFoundError creates a 404 error.
func NotFoundError(message string) *AppError {
	return &AppError{Code: "ERR_NOT_FOUND", Message: message, Status: http.StatusNotFound}
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return &AppError{Code: "ERR_INTERNAL", Message: message, Status: http.StatusInternalServerError}
}
