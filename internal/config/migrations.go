package config

import (
	"fmt"
	"strings"
)

// dialect holds the SQL fragments that differ between the supported store
// drivers. Everything else in the schema is written in the common subset.
type dialect struct {
	serialPK  string // auto-incrementing integer primary key
	timestamp string // timestamp column type
}

func dialectFor(driver string) dialect {
	switch driver {
	case "postgres":
		return dialect{serialPK: "BIGSERIAL PRIMARY KEY", timestamp: "TIMESTAMPTZ"}
	case "mysql":
		return dialect{serialPK: "BIGINT AUTO_INCREMENT PRIMARY KEY", timestamp: "DATETIME"}
	default: // sqlite
		return dialect{serialPK: "INTEGER PRIMARY KEY AUTOINCREMENT", timestamp: "DATETIME"}
	}
}

func (s *Store) migrate() error {
	d := dialectFor(s.driver)

	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tenants (
			guild_id TEXT PRIMARY KEY,
			created_at %s NOT NULL
		)`, d.timestamp),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS products (
			id %s,
			guild_id TEXT NOT NULL REFERENCES tenants(guild_id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			api_key TEXT NOT NULL,
			group_id TEXT NOT NULL,
			role_id TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			created_at %s NOT NULL,
			updated_at %s NOT NULL,
			UNIQUE(guild_id, name)
		)`, d.serialPK, d.timestamp, d.timestamp),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS whitelist_entries (
			id %s,
			product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			roblox_user_id BIGINT NOT NULL,
			expires_at %s NOT NULL,
			created_at %s NOT NULL,
			UNIQUE(product_id, roblox_user_id)
		)`, d.serialPK, d.timestamp, d.timestamp),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS api_keys (
			id %s,
			key_hash TEXT NOT NULL,
			key_prefix TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			rate_limit INTEGER NOT NULL DEFAULT 120,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			expires_at %s,
			created_at %s NOT NULL,
			last_used %s,
			UNIQUE(key_hash)
		)`, d.serialPK, d.timestamp, d.timestamp, d.timestamp),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS admins (
			id %s,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login_at %s,
			created_at %s NOT NULL,
			updated_at %s NOT NULL,
			UNIQUE(email)
		)`, d.serialPK, d.timestamp, d.timestamp, d.timestamp),

	}

	// MySQL has no CREATE INDEX IF NOT EXISTS; emit plain CREATE INDEX and
	// treat the duplicate-index error on re-migration as a no-op.
	ifNotExists := "IF NOT EXISTS "
	if s.driver == "mysql" {
		ifNotExists = ""
	}
	migrations = append(migrations,
		fmt.Sprintf(`CREATE INDEX %sidx_products_group_id ON products(group_id)`, ifNotExists),
		fmt.Sprintf(`CREATE INDEX %sidx_whitelist_user ON whitelist_entries(roblox_user_id)`, ifNotExists),
		fmt.Sprintf(`CREATE INDEX %sidx_whitelist_expiry ON whitelist_entries(expires_at)`, ifNotExists),
	)

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "duplicate key name") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
