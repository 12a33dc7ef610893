package handler

import (
	"net/http"
	"time"

	"github.com/groupgate/groupgate/internal/model"
	"github.com/groupgate/groupgate/internal/service"
)

// VerifyHandler answers whitelist lookups from game servers. This endpoint
// is public and read-only; a missing entry is a normal answer, not an error.
type VerifyHandler struct {
	verify *service.VerifyService
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(verify *service.VerifyService) *VerifyHandler {
	return &VerifyHandler{verify: verify}
}

// verifyRequest is the payload for a whitelist lookup. Both IDs must be
// positive integers; anything else is rejected before touching the store.
type verifyRequest struct {
	RobloxUserID  int64 `json:"roblox_user_id"`
	RobloxGroupID int64 `json:"roblox_group_id"`
}

// Verify reports whether a user holds an active whitelist entry for any
// product targeting the given group.
// POST /api/v1/whitelist/verify
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.RobloxUserID <= 0 {
		writeError(w, r, http.StatusBadRequest, "roblox_user_id must be a positive integer")
		return
	}
	if req.RobloxGroupID <= 0 {
		writeError(w, r, http.StatusBadRequest, "roblox_group_id must be a positive integer")
		return
	}

	entry, err := h.verify.Whitelisted(r.Context(), req.RobloxUserID, req.RobloxGroupID)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "Verification temporarily unavailable, try again shortly")
		return
	}

	result := model.VerifyResult{}
	if entry != nil {
		result.Whitelisted = true
		result.ExpiryDate = entry.ExpiresAt.UTC().Format(time.RFC3339)
	}
	writeSuccess(w, r, http.StatusOK, result)
}
