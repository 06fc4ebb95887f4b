package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/go-dm/internal/database"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(code int) *ApiError {
	return &ApiError{
		StatusCode: code,
		Message:    lower(http.StatusText(code)),
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest)
}

func NewValidationError(reason string) *ApiError {
	e := newApiError(http.StatusBadRequest)
	e.Message = reason
	return e
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound)
}

func NewConflictError() *ApiError {
	return newApiError(http.StatusConflict)
}

func NewInternalServerError(err error) *ApiError {
	e := newApiError(http.StatusInternalServerError)
	e.Err = err
	return e
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden)
}

// errorFor maps a store or service error onto its response.
func errorFor(err error) *ApiError {
	var verr *database.ValidationError
	switch {
	case errors.As(err, &verr):
		return NewValidationError(verr.Error())
	case errors.Is(err, database.ErrNotFound):
		return NewNotFoundError()
	case errors.Is(err, database.ErrForbidden):
		return NewForbiddenError()
	case errors.Is(err, database.ErrConflict):
		return NewConflictError()
	default:
		return NewInternalServerError(err)
	}
}
