package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/groupgate/groupgate/internal/config"
	"github.com/groupgate/groupgate/internal/metrics"
	"github.com/groupgate/groupgate/internal/model"
)

// VerifyService answers whitelist lookups for game clients. It reads the
// store only; the licensing API is never consulted on this path, so it is
// safe to call at high frequency.
type VerifyService struct {
	store  *config.Store
	logger *slog.Logger
}

func NewVerifyService(store *config.Store, logger *slog.Logger) *VerifyService {
	return &VerifyService{store: store, logger: logger}
}

// Whitelisted reports whether the user holds an active entry for any
// product targeting the given group, across all tenants. A group with no
// configured products yields a nil entry and nil error; absence of
// configuration is indistinguishable from absence of entitlement here.
func (s *VerifyService) Whitelisted(ctx context.Context, robloxUserID, groupID int64) (*model.WhitelistEntry, error) {
	productIDs, err := s.store.ListProductIDsByGroup(ctx, strconv.FormatInt(groupID, 10))
	if err != nil {
		return nil, &InfraError{Op: "resolve group products", Err: err}
	}

	entry, err := s.store.FindActiveEntry(ctx, productIDs, robloxUserID, time.Now())
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			metrics.VerificationsTotal.WithLabelValues("miss").Inc()
			return nil, nil
		}
		return nil, &InfraError{Op: "find whitelist entry", Err: err}
	}

	metrics.VerificationsTotal.WithLabelValues("hit").Inc()
	return entry, nil
}
