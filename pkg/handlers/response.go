package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sql"
)

// ApiResponse is the envelope for every successful JSON response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

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

// statusForError maps an engine error to an HTTP status and error code.
// Unrecognized errors are internal.
func statusForError(err error) (int, string) {
	var injected *sql.InjectionCheckResult
	switch {
	case errors.Is(err, apperrors.ErrMalformedStatement):
		return http.StatusBadRequest, "malformed_statement"
	case errors.Is(err, apperrors.ErrUnknownParameter):
		return http.StatusBadRequest, "unknown_parameter"
	case errors.As(err, &injected):
		return http.StatusBadRequest, "sample_rejected"
	case errors.Is(err, apperrors.ErrStatementInvalid):
		return http.StatusUnprocessableEntity, "statement_invalid"
	case errors.Is(err, apperrors.ErrProcedureNotFound):
		return http.StatusNotFound, "procedure_not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeServiceError writes err with the status its kind maps to. Client
// errors carry their message; internal errors are logged and hidden.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, code := statusForError(err)

	message := err.Error()
	var invalid *apperrors.StatementInvalidError
	if errors.As(err, &invalid) {
		message = invalid.Diagnostic
	}
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		message = "Failed to process request"
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
