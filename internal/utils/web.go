package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/teofly/gallery-api/internal/errors"
	"github.com/teofly/gallery-api/internal/logger"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError writes the JSON error body with its stable code. Anything that
// is not an ErrorWithStatusCode is a server-side failure: it gets logged and
// surfaced as a generic 500 so internal detail never reaches the client.
func WriteError(w http.ResponseWriter, err error) {
	if e, ok := err.(*errors.ErrorWithStatusCode); ok {
		code := e.Code
		if code == "" {
			code = errors.CodeServerError
		}
		WriteJSON(w, e.StatusCode, errorBody{Error: e.Message, Code: code})
		return
	}

	logger.Log.Error("internal error", "error", err)
	WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error", Code: errors.CodeServerError})
}

func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("failed to encode response", "error", err)
	}
}

// DecodeValidate decodes a JSON body and checks `validate` tags. Failures
// are client errors with the INVALID_INPUT code.
func DecodeValidate(r io.ReadCloser, body any) error {
	if err := json.NewDecoder(r).Decode(body); err != nil {
		return &errors.ErrorWithStatusCode{Message: "Body is invalid json", StatusCode: http.StatusBadRequest, Code: errors.CodeInvalidInput}
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(body); err != nil {
		return &errors.ErrorWithStatusCode{Message: "Required fields missing or malformed", StatusCode: http.StatusBadRequest, Code: errors.CodeInvalidInput}
	}
	return nil
}

// GetIP extracts the real client IP from RemoteAddr.
// Does NOT trust X-Real-IP or X-Forwarded-For headers (no reverse proxy)
func GetIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// Fallback: if RemoteAddr doesn't have port, use it directly
		ip = r.RemoteAddr
	}

	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("invalid IP address: %s", ip)
	}

	return ip, nil
}
