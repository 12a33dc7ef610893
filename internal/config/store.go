package config

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/groupgate/groupgate/internal/model"
)

// Store persists tenants, products, whitelist entries, API keys, and admin
// accounts. The default driver is embedded SQLite; Postgres and MySQL are
// supported for managed deployments.
type Store struct {
	db     *sqlx.DB
	driver string // "sqlite", "postgres", or "mysql"
}

// NewStore opens a store for the given driver and DSN. For sqlite the DSN is
// a data directory; pass empty string for in-memory.
func NewStore(driver, dsn string) (*Store, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch driver {
	case "", "sqlite":
		driver = "sqlite"
		sqlx.BindDriver("sqlite", sqlx.QUESTION)
		if dsn == "" {
			dsn = ":memory:?_journal_mode=WAL"
		} else {
			if err := os.MkdirAll(dsn, 0755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			dsn = filepath.Join(dsn, "groupgate.db") + "?_journal_mode=WAL&_busy_timeout=5000"
		}
		db, err = sqlx.Connect("sqlite", dsn)
		if err == nil {
			db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
			if _, perr := db.Exec("PRAGMA foreign_keys = ON"); perr != nil {
				return nil, fmt.Errorf("enable foreign keys: %w", perr)
			}
		}
	case "postgres":
		db, err = sqlx.Connect("pgx", dsn)
	case "mysql":
		db, err = sqlx.Connect("mysql", dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open store database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate store database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// insertID runs a named insert and returns the generated row id. Postgres
// has no LastInsertId, so the insert goes through RETURNING there.
func (s *Store) insertID(ctx context.Context, q string, arg interface{}) (int64, error) {
	if s.driver == "postgres" {
		rows, err := sqlx.NamedQueryContext(ctx, s.db, q+" RETURNING id", arg)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		var id int64
		if !rows.Next() {
			return 0, sql.ErrNoRows
		}
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := s.db.NamedExecContext(ctx, q, arg)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ---------------------------------------------------------------------------
// Tenants
// ---------------------------------------------------------------------------

// EnsureTenant creates the tenant row if it does not exist yet. Tenants are
// created lazily on first product add.
func (s *Store) EnsureTenant(ctx context.Context, guildID string) error {
	var q string
	switch s.driver {
	case "postgres":
		q = "INSERT INTO tenants (guild_id, created_at) VALUES (?, ?) ON CONFLICT (guild_id) DO NOTHING"
	case "mysql":
		q = "INSERT IGNORE INTO tenants (guild_id, created_at) VALUES (?, ?)"
	default:
		q = "INSERT OR IGNORE INTO tenants (guild_id, created_at) VALUES (?, ?)"
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), guildID, time.Now().UTC()); err != nil {
		return fmt.Errorf("ensure tenant: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// CreateProduct inserts a new product. The ID, CreatedAt, and UpdatedAt
// fields on p are populated after a successful insert. The (guild, name)
// pair must be unique; callers check for duplicates before inserting.
func (s *Store) CreateProduct(ctx context.Context, p *model.Product) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	const q = `INSERT INTO products
		(guild_id, name, api_key, group_id, role_id, message, created_at, updated_at)
		VALUES
		(:guild_id, :name, :api_key, :group_id, :role_id, :message, :created_at, :updated_at)`

	id, err := s.insertID(ctx, q, p)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	p.ID = id
	return nil
}

// GetProduct returns a product by its tenant and name.
func (s *Store) GetProduct(ctx context.Context, guildID, name string) (*model.Product, error) {
	var p model.Product
	q := s.db.Rebind("SELECT * FROM products WHERE guild_id = ? AND name = ?")
	if err := s.db.GetContext(ctx, &p, q, guildID, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// ListProducts returns all products configured for a tenant, ordered by name.
func (s *Store) ListProducts(ctx context.Context, guildID string) ([]model.Product, error) {
	var products []model.Product
	q := s.db.Rebind("SELECT * FROM products WHERE guild_id = ? ORDER BY name")
	if err := s.db.SelectContext(ctx, &products, q, guildID); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// ListProductIDsByGroup returns the ids of every product, across all
// tenants, that targets the given Roblox group. A group id is not unique to
// one tenant.
func (s *Store) ListProductIDsByGroup(ctx context.Context, groupID string) ([]int64, error) {
	var ids []int64
	q := s.db.Rebind("SELECT id FROM products WHERE group_id = ?")
	if err := s.db.SelectContext(ctx, &ids, q, groupID); err != nil {
		return nil, fmt.Errorf("list products by group: %w", err)
	}
	return ids, nil
}

// UpdateProduct updates an existing product. The UpdatedAt field on p is
// refreshed automatically.
func (s *Store) UpdateProduct(ctx context.Context, p *model.Product) error {
	p.UpdatedAt = time.Now().UTC()

	const q = `UPDATE products SET
		api_key = :api_key, group_id = :group_id, role_id = :role_id,
		message = :message, updated_at = :updated_at
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, p)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes a product by tenant and name. Its whitelist entries
// are cascade-deleted by the foreign key constraint.
func (s *Store) DeleteProduct(ctx context.Context, guildID, name string) error {
	q := s.db.Rebind("DELETE FROM products WHERE guild_id = ? AND name = ?")
	result, err := s.db.ExecContext(ctx, q, guildID, name)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Whitelist entries
// ---------------------------------------------------------------------------

// UpsertWhitelistEntry inserts a whitelist entry or extends an existing one.
// The stored expiry only ever moves forward: upserting an earlier expiry
// over a later one leaves the later one in place.
func (s *Store) UpsertWhitelistEntry(ctx context.Context, productID, robloxUserID int64, expiresAt time.Time) error {
	now := time.Now().UTC()
	expiresAt = expiresAt.UTC()

	var q string
	switch s.driver {
	case "postgres":
		q = `INSERT INTO whitelist_entries (product_id, roblox_user_id, expires_at, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (product_id, roblox_user_id)
			DO UPDATE SET expires_at = GREATEST(whitelist_entries.expires_at, EXCLUDED.expires_at)`
	case "mysql":
		q = `INSERT INTO whitelist_entries (product_id, roblox_user_id, expires_at, created_at)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE expires_at = GREATEST(expires_at, VALUES(expires_at))`
	default:
		q = `INSERT INTO whitelist_entries (product_id, roblox_user_id, expires_at, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (product_id, roblox_user_id)
			DO UPDATE SET expires_at = MAX(whitelist_entries.expires_at, excluded.expires_at)`
	}

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), productID, robloxUserID, expiresAt, now); err != nil {
		return fmt.Errorf("upsert whitelist entry: %w", err)
	}
	return nil
}

// FindActiveEntry returns the entry with the greatest expiry among the given
// product ids for this user, filtered to expiry strictly after now. Returns
// ErrNotFound when no active entry exists; an empty product set short-circuits
// without touching the database.
func (s *Store) FindActiveEntry(ctx context.Context, productIDs []int64, robloxUserID int64, now time.Time) (*model.WhitelistEntry, error) {
	if len(productIDs) == 0 {
		return nil, ErrNotFound
	}

	q, args, err := sqlx.In(`SELECT * FROM whitelist_entries
		WHERE roblox_user_id = ? AND product_id IN (?) AND expires_at > ?
		ORDER BY expires_at DESC LIMIT 1`, robloxUserID, productIDs, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("build whitelist query: %w", err)
	}

	var entry model.WhitelistEntry
	if err := s.db.GetContext(ctx, &entry, s.db.Rebind(q), args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find active entry: %w", err)
	}
	return &entry, nil
}

// DeleteEntriesExpiredBefore removes whitelist entries whose expiry is older
// than the cutoff. Used by the retention reaper; returns the number purged.
func (s *Store) DeleteEntriesExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q := s.db.Rebind("DELETE FROM whitelist_entries WHERE expires_at < ?")
	result, err := s.db.ExecContext(ctx, q, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired entries: %w", err)
	}
	return result.RowsAffected()
}

// ---------------------------------------------------------------------------
// API keys
// ---------------------------------------------------------------------------

// CreateAPIKey inserts a new API key record. The key_hash must already be
// set (use HashAPIKey). The ID and CreatedAt fields are populated after
// insert.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO api_keys
		(key_hash, key_prefix, label, rate_limit, is_active, expires_at, created_at)
		VALUES
		(:key_hash, :key_prefix, :label, :rate_limit, :is_active, :expires_at, :created_at)`

	id, err := s.insertID(ctx, q, key)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	key.ID = id
	return nil
}

// GetAPIKeyByHash looks up an active API key by its SHA-256 hash. Revoked
// keys are not returned; they surface as ErrNotFound. Use ListAPIKeys for
// the full inventory including inactive keys.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	var key model.APIKey
	q := s.db.Rebind("SELECT * FROM api_keys WHERE key_hash = ? AND is_active = TRUE")
	if err := s.db.GetContext(ctx, &key, q, hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return &key, nil
}

// ListAPIKeys returns all API keys, newest first.
func (s *Store) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := s.db.SelectContext(ctx, &keys, "SELECT * FROM api_keys ORDER BY created_at DESC"); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey marks an API key as inactive by ID.
func (s *Store) RevokeAPIKey(ctx context.Context, id int64) error {
	q := s.db.Rebind("UPDATE api_keys SET is_active = FALSE WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAPIKeyLastUsed sets the last_used timestamp for an API key.
func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id int64) error {
	q := s.db.Rebind("UPDATE api_keys SET last_used = ? WHERE id = ?")
	if _, err := s.db.ExecContext(ctx, q, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Admins
// ---------------------------------------------------------------------------

// CreateAdmin inserts a new admin account. The ID, CreatedAt, and UpdatedAt
// fields are populated after a successful insert.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	const q = `INSERT INTO admins
		(email, password_hash, name, is_active, created_at, updated_at)
		VALUES
		(:email, :password_hash, :name, :is_active, :created_at, :updated_at)`

	id, err := s.insertID(ctx, q, admin)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	admin.ID = id
	return nil
}

// GetAdminByEmail returns an admin by email address.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	q := s.db.Rebind("SELECT * FROM admins WHERE email = ?")
	if err := s.db.GetContext(ctx, &admin, q, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all admin accounts.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins, "SELECT * FROM admins ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin account exists. Used for
// first-run detection.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// UpdateAdminLastLogin sets the last_login_at timestamp for an admin.
func (s *Store) UpdateAdminLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	q := s.db.Rebind("UPDATE admins SET last_login_at = ?, updated_at = ? WHERE id = ?")
	if _, err := s.db.ExecContext(ctx, q, now, now, id); err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Utility
// ---------------------------------------------------------------------------

// HashAPIKey returns the hex-encoded SHA-256 hash of a raw API key string.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// HashPassword returns the hex-encoded SHA-256 hash of an admin password.
func HashPassword(password string) string {
	return HashAPIKey(password)
}
