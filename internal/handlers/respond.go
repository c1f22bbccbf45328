package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/portaprosoftware/fleet-compliance/internal/db"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// Error codes returned in the "error" field of error bodies.
const (
	codeBadRequest   = "bad_request"
	codeValidation   = "validation_failed"
	codeUnauthorized = "unauthorized"
	codeForbidden    = "forbidden"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeInternal     = "internal_error"
	codeUpstream     = "upstream_error"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// decodeJSON reads a JSON request body into v. Unknown fields are ignored.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return errors.New("request body too large")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.New("invalid JSON")
	}
	return nil
}

// validator is implemented by request payloads.
type validator interface {
	Validate() error
}

// decodeAndValidate decodes the body and runs boundary validation, writing
// a 400 on failure. It reports whether the handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v validator) bool {
	if err := decodeJSON(r, v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return false
	}
	if err := v.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return false
	}
	return true
}

// writeLookupError maps data layer errors of by-id operations to responses.
// failMessage is shown for anything unexpected.
func writeLookupError(w http.ResponseWriter, err error, what, failMessage string) {
	switch {
	case errors.Is(err, db.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid "+what+" id")
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, what+" not found")
	default:
		log.WithError(err).Error(failMessage)
		writeError(w, http.StatusInternalServerError, codeInternal, failMessage)
	}
}
