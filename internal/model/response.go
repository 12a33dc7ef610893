package model

// Response is the standard envelope for successful API responses.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorResponse is the standard envelope for error responses. Internal
// details (stack traces, raw upstream payloads) never appear here; they go
// to logs only.
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// VerifyResult is the data payload of the public whitelist verification
// endpoint. ExpiryDate is RFC3339 and present only when whitelisted.
type VerifyResult struct {
	Whitelisted bool   `json:"whitelisted"`
	ExpiryDate  string `json:"expiry_date,omitempty"`
}
