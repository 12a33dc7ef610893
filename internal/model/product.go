package model

import "time"

// Tenant is a Discord guild with its own isolated product configuration.
// A tenant row is created lazily when its first product is added.
type Tenant struct {
	GuildID   string    `json:"guild_id" db:"guild_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Product maps a license namespace (one licensing-API product) to a Roblox
// group. Redeeming a valid license key for a product grants the redeemer a
// time-bounded whitelist entry for that product's group.
type Product struct {
	ID        int64     `json:"id" db:"id"`
	GuildID   string    `json:"guild_id" db:"guild_id"`
	Name      string    `json:"name" db:"name"`
	APIKey    string    `json:"-" db:"api_key"` // licensing API credential, never expose
	GroupID   string    `json:"group_id" db:"group_id"`
	RoleID    string    `json:"role_id,omitempty" db:"role_id"`
	Message   string    `json:"message,omitempty" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProductUpdate carries a partial edit of a product. Nil fields are left
// unchanged; set fields are re-validated against the same rules as add.
type ProductUpdate struct {
	APIKey  *string `json:"api_key,omitempty"`
	GroupID *string `json:"group_id,omitempty"`
	RoleID  *string `json:"role_id,omitempty"`
	Message *string `json:"message,omitempty"`
}
