package common

import (
	"errors"
	"net/http"

	"github.com/noah-isme/scentmarket/internal/pricing"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

func BadRequest(message string, err error) *AppError {
	return NewAppError("BAD_REQUEST", message, http.StatusBadRequest, err)
}

func NotFound(message string, err error) *AppError {
	return NewAppError("NOT_FOUND", message, http.StatusNotFound, err)
}

func Conflict(message string, err error) *AppError {
	return NewAppError("CONFLICT", message, http.StatusConflict, err)
}

// WriteError renders err using the canonical error shape. Pricing errors are
// reported as 422 with their stable code; unknown errors become a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	if err == nil {
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		message := appErr.Message
		if message == "" {
			message = appErr.Error()
		}
		JSONError(w, status, code, message, appErr.Details)
		return
	}
	var priceErr *pricing.Error
	if errors.As(err, &priceErr) {
		JSONError(w, http.StatusUnprocessableEntity, priceErr.Code(), priceErr.Error(), PricingDetails(priceErr))
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}

// PricingDetails exposes the stage and input that rejected a computation.
func PricingDetails(err *pricing.Error) map[string]any {
	details := map[string]any{"stage": string(err.Stage)}
	if err.Field != "" {
		details["field"] = err.Field
	}
	if err.Index >= 0 {
		details["index"] = err.Index
	}
	return details
}
