package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/groupgate/groupgate/internal/config"
	"github.com/groupgate/groupgate/internal/license"
	"github.com/groupgate/groupgate/internal/metrics"
	"github.com/groupgate/groupgate/internal/model"
	"github.com/groupgate/groupgate/internal/ratelimit"
)

// RedeemRequest is one redemption attempt. Identity and Limit come from the
// authenticated caller's API key; Product is the optional selector required
// only when the tenant has more than one product configured.
type RedeemRequest struct {
	GuildID      string
	RobloxUserID int64
	LicenseKey   string
	Product      string
	Identity     string
	Limit        int
}

// RedeemResult is a completed redemption.
type RedeemResult struct {
	Product   string    `json:"product"`
	GroupID   string    `json:"group_id"`
	RoleID    string    `json:"role_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	Message   string    `json:"message,omitempty"`
	LocalOnly bool      `json:"-"` // remote disable unsupported, tracked locally
}

// RedeemService is the redemption orchestrator. It runs each attempt
// through rate check, product resolution, license validation, whitelist
// write, and best-effort remote disable, in that order. All collaborators
// are injected once at construction.
type RedeemService struct {
	store    *config.Store
	license  *license.Client
	limiter  *ratelimit.Limiter
	products *ProductService
	logger   *slog.Logger
	duration time.Duration // whitelist validity granted per redemption
}

func NewRedeemService(store *config.Store, lic *license.Client, limiter *ratelimit.Limiter,
	products *ProductService, duration time.Duration, logger *slog.Logger) *RedeemService {
	return &RedeemService{
		store:    store,
		license:  lic,
		limiter:  limiter,
		products: products,
		logger:   logger,
		duration: duration,
	}
}

// Redeem runs the full redemption state machine. The rate check happens
// before anything else; no state-mutating work precedes it. Error types
// distinguish the failure classes: *RateLimitError, ErrNotConfigured,
// *ChoiceRequiredError, *ValidationError (bad key), *InfraError (store
// failure, retryable).
func (s *RedeemService) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	if d := s.limiter.Check(req.Identity, req.Limit); !d.Allowed {
		metrics.RedemptionsTotal.WithLabelValues("rate_limited").Inc()
		return nil, &RateLimitError{Decision: d}
	}

	products, err := s.products.Resolve(ctx, req.GuildID)
	if err != nil {
		metrics.RedemptionsTotal.WithLabelValues("infra_error").Inc()
		return nil, &InfraError{Op: "resolve products", Err: err}
	}

	var selected *model.Product
	switch {
	case len(products) == 0:
		metrics.RedemptionsTotal.WithLabelValues("not_configured").Inc()
		return nil, ErrNotConfigured
	case len(products) == 1:
		selected = &products[0]
	default:
		if req.Product == "" {
			names := make([]string, len(products))
			for i := range products {
				names[i] = products[i].Name
			}
			return nil, &ChoiceRequiredError{Products: names}
		}
		for i := range products {
			if products[i].Name == req.Product {
				selected = &products[i]
				break
			}
		}
		if selected == nil {
			return nil, &ConfigError{Field: "product", Reason: "no product with that name is configured"}
		}
	}

	result := s.license.Verify(ctx, selected.APIKey, req.LicenseKey)
	if !result.Valid() {
		metrics.RedemptionsTotal.WithLabelValues(result.Status.String()).Inc()
		s.logger.Info("redemption rejected",
			"guild", req.GuildID,
			"product", selected.Name,
			"status", result.Status.String(),
		)
		return nil, &ValidationError{Reason: result.Message}
	}

	expiresAt := time.Now().Add(s.duration).UTC()
	if err := s.store.UpsertWhitelistEntry(ctx, selected.ID, req.RobloxUserID, expiresAt); err != nil {
		metrics.RedemptionsTotal.WithLabelValues("infra_error").Inc()
		return nil, &InfraError{Op: "write whitelist entry", Err: err}
	}

	// Best-effort: a failed remote disable never rolls back the whitelist
	// write. Soft failures fall back to local usage tracking.
	localOnly, err := s.license.Disable(ctx, selected.APIKey, req.LicenseKey)
	if err != nil {
		s.logger.Warn("remote key disable failed, tracking locally",
			"guild", req.GuildID,
			"product", selected.Name,
			"error", err,
		)
		localOnly = true
	}

	metrics.RedemptionsTotal.WithLabelValues("success").Inc()
	s.logger.Info("redemption completed",
		"guild", req.GuildID,
		"product", selected.Name,
		"roblox_user", req.RobloxUserID,
		"expires_at", expiresAt,
		"local_only", localOnly,
	)

	return &RedeemResult{
		Product:   selected.Name,
		GroupID:   selected.GroupID,
		RoleID:    selected.RoleID,
		ExpiresAt: expiresAt,
		Message:   selected.Message,
		LocalOnly: localOnly,
	}, nil
}
