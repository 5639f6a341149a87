package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/trika-ai/trika-engine/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error to a JSON error response. EngineError codes
// drive the HTTP status; anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	var ee *schema.EngineError
	if !errors.As(err, &ee) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, statusFor(ee.Code), map[string]any{
		"error":   ee.Message,
		"code":    ee.Code,
		"node_id": ee.NodeID,
		"details": ee.Details,
	})
}

func statusFor(code string) int {
	switch code {
	case schema.ErrCodeValidation, schema.ErrCodeCycleDetected:
		return http.StatusBadRequest
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// badRequest writes a 400 with a plain message.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg, "code": schema.ErrCodeValidation})
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
