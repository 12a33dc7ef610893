package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/groupgate/groupgate/internal/config"
	"github.com/groupgate/groupgate/internal/license"
	"github.com/groupgate/groupgate/internal/model"
)

// ProductService is the configuration registry: tenant-scoped CRUD over
// products, validated before any I/O, with a read-through cache consulted
// by the redemption path. Mutations persist before confirming success and
// invalidate the cache afterwards.
type ProductService struct {
	store  *config.Store
	cache  *config.Cache[[]model.Product]
	logger *slog.Logger
}

// DefaultCacheTTL bounds how stale the redemption path may see product
// configuration after an edit.
const DefaultCacheTTL = time.Minute

func NewProductService(store *config.Store, cacheTTL time.Duration, logger *slog.Logger) *ProductService {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &ProductService{
		store:  store,
		cache:  config.NewCache[[]model.Product](cacheTTL),
		logger: logger,
	}
}

func validateName(name string) error {
	// Length is counted in characters, not bytes.
	if n := utf8.RuneCountInString(name); n < 1 || n > 100 {
		return &ConfigError{Field: "name", Reason: "must be 1-100 characters"}
	}
	return nil
}

func validateGroupID(groupID string) error {
	if groupID == "" {
		return &ConfigError{Field: "group_id", Reason: "is required"}
	}
	if _, err := strconv.ParseInt(groupID, 10, 64); err != nil {
		return &ConfigError{Field: "group_id", Reason: "must be a numeric string"}
	}
	return nil
}

func validateCredential(credential string) error {
	if err := license.ValidateCredential(credential); err != nil {
		return &ConfigError{Field: "api_key", Reason: err.Error()}
	}
	return nil
}

// Add creates a product for a tenant. The tenant row is created lazily on
// first add. Duplicate names within a tenant are rejected and leave the
// existing product unmodified.
func (s *ProductService) Add(ctx context.Context, p *model.Product) error {
	if err := validateName(p.Name); err != nil {
		return err
	}
	if err := validateCredential(p.APIKey); err != nil {
		return err
	}
	if err := validateGroupID(p.GroupID); err != nil {
		return err
	}

	if _, err := s.store.GetProduct(ctx, p.GuildID, p.Name); err == nil {
		return ErrDuplicateProduct
	} else if !errors.Is(err, config.ErrNotFound) {
		return fmt.Errorf("check duplicate product: %w", err)
	}

	if err := s.store.EnsureTenant(ctx, p.GuildID); err != nil {
		return err
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return err
	}

	s.cache.Invalidate(p.GuildID)
	s.logger.Info("product added", "guild", p.GuildID, "product", p.Name, "group", p.GroupID)
	return nil
}

// Update applies a partial edit to a product. Only the fields being changed
// are re-validated, against the same rules as Add.
func (s *ProductService) Update(ctx context.Context, guildID, name string, upd model.ProductUpdate) (*model.Product, error) {
	p, err := s.store.GetProduct(ctx, guildID, name)
	if err != nil {
		return nil, err
	}

	if upd.APIKey != nil {
		if err := validateCredential(*upd.APIKey); err != nil {
			return nil, err
		}
		p.APIKey = *upd.APIKey
	}
	if upd.GroupID != nil {
		if err := validateGroupID(*upd.GroupID); err != nil {
			return nil, err
		}
		p.GroupID = *upd.GroupID
	}
	if upd.RoleID != nil {
		p.RoleID = *upd.RoleID
	}
	if upd.Message != nil {
		p.Message = *upd.Message
	}

	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}

	s.cache.Invalidate(guildID)
	s.logger.Info("product updated", "guild", guildID, "product", name)
	return p, nil
}

// Remove deletes a product. Whitelist entries cascade at the store level.
func (s *ProductService) Remove(ctx context.Context, guildID, name string) error {
	if err := s.store.DeleteProduct(ctx, guildID, name); err != nil {
		return err
	}
	s.cache.Invalidate(guildID)
	s.logger.Info("product removed", "guild", guildID, "product", name)
	return nil
}

// List returns a tenant's products straight from the store (admin view,
// never cached).
func (s *ProductService) List(ctx context.Context, guildID string) ([]model.Product, error) {
	return s.store.ListProducts(ctx, guildID)
}

// Resolve returns a tenant's products through the read-through cache. The
// redemption path uses this; staleness is bounded by the cache TTL.
func (s *ProductService) Resolve(ctx context.Context, guildID string) ([]model.Product, error) {
	return s.cache.Get(ctx, guildID, func(ctx context.Context) ([]model.Product, error) {
		return s.store.ListProducts(ctx, guildID)
	})
}

// Invalidate drops a tenant's cached products. Exposed for tests and for
// operators forcing an immediate config reload.
func (s *ProductService) Invalidate(guildID string) {
	s.cache.Invalidate(guildID)
}
