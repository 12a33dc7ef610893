package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/groupgate/groupgate/internal/config"
	"github.com/groupgate/groupgate/internal/service"
)

// SessionHandler manages admin session tokens.
type SessionHandler struct {
	store   *config.Store
	authSvc *service.AuthService
	jwtTTL  time.Duration
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(store *config.Store, authSvc *service.AuthService, jwtTTL time.Duration) *SessionHandler {
	return &SessionHandler{store: store, authSvc: authSvc, jwtTTL: jwtTTL}
}

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the data payload for a successful login.
type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	AdminID   int64  `json:"admin_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

// Login authenticates an admin user and returns a JWT session token.
// POST /api/v1/admin/session
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "Email and password are required")
		return
	}

	admin, err := h.store.GetAdminByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "Authentication error")
		return
	}

	if !admin.IsActive {
		writeError(w, r, http.StatusUnauthorized, "Account is disabled")
		return
	}

	if config.HashPassword(req.Password) != admin.PasswordHash {
		writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authSvc.IssueJWT(r.Context(), admin.ID, admin.Email, h.jwtTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	_ = h.store.UpdateAdminLastLogin(r.Context(), admin.ID)

	writeSuccess(w, r, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.jwtTTL.Seconds()),
		AdminID:   admin.ID,
		Email:     admin.Email,
		Name:      admin.Name,
	})
}

// Logout invalidates the current session. JWTs are stateless, so this is a
// no-op on the server side; clients should discard their token.
// DELETE /api/v1/admin/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, http.StatusOK, map[string]interface{}{
		"message": "Session invalidated",
	})
}
