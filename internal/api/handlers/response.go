// Package handlers implements the HTTP handlers for the API server.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/duonordic/sitedeck/internal/api/errors"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	apierrors.WriteJSON(w, status, data)
}

// WriteError maps any error onto the API error taxonomy and writes it.
// Errors that are not APIErrors become opaque internal errors.
func WriteError(w http.ResponseWriter, err error) {
	if apiErr := apierrors.AsAPIError(err); apiErr != nil {
		apierrors.WriteError(w, apiErr)
		return
	}
	apierrors.WriteError(w, apierrors.NewInternalError("An unexpected error occurred"))
}

// decodeJSON decodes a request body into dst. An empty body is an
// error; handlers with optional bodies check for io.EOF themselves.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierrors.NewValidationError("Invalid request body")
	}
	return nil
}
