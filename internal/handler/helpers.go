package handler

import (
	"encoding/json"
	"net/http"

	"github.com/groupgate/groupgate/internal/model"
	"github.com/groupgate/groupgate/internal/server/middleware"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeSuccess wraps data in the standard success envelope, echoing the
// request ID from the context.
func writeSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, status, model.Response{
		Success:   true,
		Data:      data,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

// writeError writes a structured error response using the standard error
// envelope.
func writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
		},
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure. Unknown fields are rejected so
// that client typos surface as errors instead of silent defaults.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
