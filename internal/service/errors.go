package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/groupgate/groupgate/internal/ratelimit"
)

var (
	// ErrNotConfigured means the tenant has no products configured.
	ErrNotConfigured = errors.New("server not configured")

	// ErrDuplicateProduct means a product with that name already exists in
	// the tenant.
	ErrDuplicateProduct = errors.New("a product with that name already exists")
)

// ConfigError is a malformed product field, rejected synchronously before
// any I/O.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RateLimitError carries the limiter decision so callers can advertise the
// reset time.
type RateLimitError struct {
	Decision ratelimit.Decision
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s",
		time.Until(e.Decision.ResetAt).Round(time.Second))
}

// ChoiceRequiredError means the tenant has multiple products and the caller
// must pick one explicitly.
type ChoiceRequiredError struct {
	Products []string
}

func (e *ChoiceRequiredError) Error() string {
	return "multiple products configured, specify one of: " + strings.Join(e.Products, ", ")
}

// ValidationError is a terminal license-key failure (disabled, not found,
// auth failed, or a transient upstream error). The message is surfaced to
// the end user verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// InfraError is a store failure, reported distinctly from validation so the
// caller can distinguish "bad key" from "try again".
type InfraError struct {
	Op  string
	Err error
}

func (e *InfraError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *InfraError) Unwrap() error { return e.Err }
