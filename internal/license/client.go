// Package license wraps the third-party licensing HTTP API. All expected
// failure modes are folded into a Result value; Verify never returns an
// error to its caller.
package license

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CredentialPrefix is the required literal prefix for licensing API
// credentials. A credential without it is rejected before any network call.
const CredentialPrefix = "ph_"

// ValidateCredential checks that a licensing API credential is well-formed.
func ValidateCredential(credential string) error {
	if !strings.HasPrefix(credential, CredentialPrefix) {
		return fmt.Errorf("licensing API credential must start with %q", CredentialPrefix)
	}
	return nil
}

// Status is the closed set of verification outcomes.
type Status int

const (
	StatusValid Status = iota
	StatusDisabled
	StatusNotFound
	StatusAuthFailed
	StatusTransient
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusDisabled:
		return "disabled"
	case StatusNotFound:
		return "not_found"
	case StatusAuthFailed:
		return "auth_failed"
	default:
		return "transient"
	}
}

// Result is the outcome of a key verification. Uses and MaxUses are only
// meaningful for StatusValid and StatusDisabled; Message carries the
// human-readable reason for every non-valid status.
type Result struct {
	Status  Status
	Uses    int
	MaxUses int
	Message string
}

// Valid reports whether the key is redeemable. Disablement is the sole
// authority here: a used but enabled key is still valid.
func (r Result) Valid() bool { return r.Status == StatusValid }

// Used reports whether the key has been redeemed at least once before.
func (r Result) Used() bool { return r.Uses > 0 }

// Client calls the licensing API. Construct one at process start and share
// it; the per-product credential is supplied per call.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a licensing API client with a bounded request timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// verifyPayload mirrors the licensing API's verification response body.
type verifyPayload struct {
	Data struct {
		Enabled bool   `json:"enabled"`
		Uses    int    `json:"uses"`
		MaxUses int    `json:"max_uses"`
		Product string `json:"product_link"`
	} `json:"data"`
}

// Verify checks a license key against the licensing API using the product's
// credential. Every failure mode resolves to a Result; no error escapes.
func (c *Client) Verify(ctx context.Context, credential, key string) Result {
	if err := ValidateCredential(credential); err != nil {
		return Result{Status: StatusAuthFailed, Message: err.Error()}
	}

	endpoint := c.baseURL + "/license/verify?license_key=" + url.QueryEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Status: StatusTransient, Message: "License check failed, try again shortly"}
	}
	req.Header.Set("product-api-key", credential)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("license verify request failed", "error", err)
		return Result{Status: StatusTransient, Message: "License check failed, try again shortly"}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Result{Status: StatusNotFound, Message: "Product key not found"}
	case resp.StatusCode == http.StatusUnauthorized:
		return Result{Status: StatusAuthFailed, Message: "API authentication failed"}
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn("license verify unexpected status", "status", resp.StatusCode)
		return Result{Status: StatusTransient, Message: "License check failed, try again shortly"}
	}

	var payload verifyPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Warn("license verify decode failed", "error", err)
		return Result{Status: StatusTransient, Message: "License check failed, try again shortly"}
	}

	// A disabled key is never redeemable, regardless of how healthy the
	// rest of the payload looks.
	if !payload.Data.Enabled {
		return Result{
			Status:  StatusDisabled,
			Uses:    payload.Data.Uses,
			MaxUses: payload.Data.MaxUses,
			Message: "License key is disabled",
		}
	}

	return Result{
		Status:  StatusValid,
		Uses:    payload.Data.Uses,
		MaxUses: payload.Data.MaxUses,
	}
}

// Disable asks the licensing API to disable a key after redemption. A remote
// 404/405 means the account's API lacks the disable capability; that is a
// soft success (localOnly=true) and the caller falls back to local
// bookkeeping. It is logged loudly so a misconfigured licensing account
// does not go unnoticed.
func (c *Client) Disable(ctx context.Context, credential, key string) (localOnly bool, err error) {
	if err := ValidateCredential(credential); err != nil {
		return false, err
	}

	body, _ := json.Marshal(map[string]string{"license_key": key})
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/license/disable", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build disable request: %w", err)
	}
	req.Header.Set("product-api-key", credential)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("disable license key: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return false, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed:
		c.logger.Warn("license disable unsupported by remote API, tracking locally only",
			"status", resp.StatusCode)
		return true, nil
	default:
		return false, fmt.Errorf("disable license key: unexpected status %d", resp.StatusCode)
	}
}
