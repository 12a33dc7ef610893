package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/groupgate/groupgate/internal/server/middleware"
	"github.com/groupgate/groupgate/internal/service"
)

// RedeemHandler accepts license redemption requests from bot consumers.
type RedeemHandler struct {
	redeem *service.RedeemService
}

// NewRedeemHandler creates a new RedeemHandler.
func NewRedeemHandler(redeem *service.RedeemService) *RedeemHandler {
	return &RedeemHandler{redeem: redeem}
}

// redeemRequest is the payload for a redemption attempt. Product is required
// only when the tenant has more than one product configured.
type redeemRequest struct {
	GuildID      string `json:"guild_id"`
	RobloxUserID int64  `json:"roblox_user_id"`
	LicenseKey   string `json:"license_key"`
	Product      string `json:"product,omitempty"`
}

// Redeem runs a redemption attempt end to end.
// POST /api/v1/redeem
func (h *RedeemHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil || principal.Type != "api_key" {
		writeError(w, r, http.StatusForbidden, "Redemption requires an API key")
		return
	}

	var req redeemRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.GuildID == "" {
		writeError(w, r, http.StatusBadRequest, "guild_id is required")
		return
	}
	if req.RobloxUserID <= 0 {
		writeError(w, r, http.StatusBadRequest, "roblox_user_id must be a positive integer")
		return
	}
	if req.LicenseKey == "" {
		writeError(w, r, http.StatusBadRequest, "license_key is required")
		return
	}

	result, err := h.redeem.Redeem(r.Context(), service.RedeemRequest{
		GuildID:      req.GuildID,
		RobloxUserID: req.RobloxUserID,
		LicenseKey:   req.LicenseKey,
		Product:      req.Product,
		Identity:     principal.KeyPrefix,
		Limit:        principal.RateLimit,
	})
	if err != nil {
		writeRedeemError(w, r, err)
		return
	}

	writeSuccess(w, r, http.StatusOK, result)
}

// writeRedeemError maps the orchestrator's failure classes onto HTTP status
// codes. Infrastructure failures are distinguishable from invalid keys so
// callers know whether a retry can help.
func writeRedeemError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rateErr   *service.RateLimitError
		choiceErr *service.ChoiceRequiredError
		cfgErr    *service.ConfigError
		valErr    *service.ValidationError
		infraErr  *service.InfraError
	)
	switch {
	case errors.As(err, &rateErr):
		middleware.SetRateLimitHeaders(w, rateErr.Decision)
		middleware.WriteRateLimited(w, r)
	case errors.Is(err, service.ErrNotConfigured):
		writeError(w, r, http.StatusConflict, "No products are configured for this server")
	case errors.As(err, &choiceErr):
		writeError(w, r, http.StatusBadRequest,
			"Multiple products are configured for this server; specify one of: "+strings.Join(choiceErr.Products, ", "))
	case errors.As(err, &cfgErr):
		writeError(w, r, http.StatusBadRequest, cfgErr.Error())
	case errors.As(err, &valErr):
		writeError(w, r, http.StatusUnprocessableEntity, valErr.Reason)
	case errors.As(err, &infraErr):
		writeError(w, r, http.StatusServiceUnavailable, "Redemption temporarily unavailable, try again shortly")
	default:
		writeError(w, r, http.StatusInternalServerError, "Redemption failed")
	}
}
