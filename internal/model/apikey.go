package model

import "time"

// APIKey authenticates callers of the redemption API (typically the Discord
// bot process). The raw key is never stored; only a SHA-256 hash and a short
// prefix for identification are persisted. RateLimit is the key's own
// requests-per-minute ceiling, independent of the public per-IP limit.
type APIKey struct {
	ID        int64      `json:"id" db:"id"`
	KeyHash   string     `json:"-" db:"key_hash"` // SHA-256 hash, never expose
	KeyPrefix string     `json:"key_prefix" db:"key_prefix"`
	Label     string     `json:"label" db:"label"`
	RateLimit int        `json:"rate_limit" db:"rate_limit"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty" db:"last_used"`
}
