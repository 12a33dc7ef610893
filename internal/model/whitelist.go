package model

import "time"

// WhitelistEntry is a time-bounded grant of access for one Roblox user to
// one product's group. Keyed by (product_id, roblox_user_id); redeeming
// again extends the expiry, it never shortens it.
type WhitelistEntry struct {
	ID           int64     `json:"id" db:"id"`
	ProductID    int64     `json:"product_id" db:"product_id"`
	RobloxUserID int64     `json:"roblox_user_id" db:"roblox_user_id"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Active reports whether the entry grants access at the given instant.
// Expiry is strict: an entry expiring exactly now is no longer active.
func (e *WhitelistEntry) Active(now time.Time) bool {
	return e.ExpiresAt.After(now)
}
