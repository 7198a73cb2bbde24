// Package httputil writes JSON responses and maps coded errors to HTTP statuses.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "fieldcomply/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope. Internal failures never leak their
// message to the caller.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.GetCode(err)
	body := map[string]string{"error": string(code)}
	if status := StatusFor(code); status < http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) && de.Message != "" {
			body["error_description"] = de.Message
		}
	}
	WriteJSON(w, StatusFor(code), body)
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeInvalidInput, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes a bounded request body into T, rejecting unknown fields.
func DecodeJSON[T any](r *http.Request) (T, error) {
	var out T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid request body")
	}
	return out, nil
}
