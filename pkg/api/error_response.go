package api

import (
	"encoding/json"
	"net/http"

	"github.com/packstore/packstore/pkg/domain"
)

// ErrorResponse represents a standard JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// WriteJSONError writes a JSON error response with the given status code and message
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	json.NewEncoder(w).Encode(response)
}

// WriteDomainError maps a domain error to its HTTP status.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		WriteJSONError(w, http.StatusBadRequest, err.Error())
	case domain.IsPermission(err):
		WriteJSONError(w, http.StatusForbidden, err.Error())
	case domain.IsNotFound(err):
		WriteJSONError(w, http.StatusNotFound, err.Error())
	case domain.IsLookup(err):
		WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		WriteJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
