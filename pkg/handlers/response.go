package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/pairlink-inc/pairlink-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteServiceError maps domain sentinel errors to HTTP statuses. Unknown
// errors are logged and reported as a generic 500.
func WriteServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, apperrors.ErrForbidden):
		_ = ErrorResponse(w, http.StatusForbidden, "forbidden", "You are not a party to this resource")
	case errors.Is(err, apperrors.ErrAlreadyPaired):
		_ = ErrorResponse(w, http.StatusConflict, "already_paired", "One of the users already has an active relationship")
	case errors.Is(err, apperrors.ErrPendingExists):
		_ = ErrorResponse(w, http.StatusConflict, "pending_exists", "A pending request already exists between these users")
	case errors.Is(err, apperrors.ErrDuplicateResult):
		_ = ErrorResponse(w, http.StatusConflict, "duplicate_result", "A result already exists for this session")
	case errors.Is(err, apperrors.ErrConflict):
		_ = ErrorResponse(w, http.StatusConflict, "conflict", "The resource is not in a state that allows this operation")
	default:
		logger.Error("request failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
