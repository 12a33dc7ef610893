package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/groupgate/groupgate/internal/config"
	"github.com/groupgate/groupgate/internal/license"
	"github.com/groupgate/groupgate/internal/model"
	"github.com/groupgate/groupgate/internal/ratelimit"
	"github.com/groupgate/groupgate/internal/service"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-jwt-integration-tests"
	testPassword  = "supersecretpassword"
	testRawAPIKey = "ggk_0123456789abcdef0123456789abcdef"
)

// testEnv holds the shared state for integration tests: a fully wired Server
// backed by an in-memory store and a fake licensing API.
type testEnv struct {
	server     *Server
	store      *config.Store
	licenseSrv *httptest.Server

	licenseEnabled bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("sqlite", "") // in-memory
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := &testEnv{store: store, licenseEnabled: true}

	env.licenseSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/license/verify":
			fmt.Fprintf(w, `{"data":{"enabled":%t,"uses":0,"max_uses":1}}`, env.licenseEnabled)
		case "/license/disable":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(env.licenseSrv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authSvc := service.NewAuthService(store, testJWTSecret)
	products := service.NewProductService(store, time.Minute, logger)
	lic := license.NewClient(env.licenseSrv.URL, 5*time.Second, logger)
	limiter := ratelimit.New(time.Minute)
	redeemSvc := service.NewRedeemService(store, lic, limiter, products, 720*time.Hour, logger)
	verifySvc := service.NewVerifyService(store, logger)

	env.server = New(DefaultConfig(), store, authSvc, products, redeemSvc, verifySvc, logger)
	return env
}

func (e *testEnv) seedAdmin(t *testing.T) {
	t.Helper()
	admin := &model.Admin{
		Email:        "admin@example.com",
		PasswordHash: config.HashPassword(testPassword),
		Name:         "Test Admin",
		IsActive:     true,
	}
	if err := e.store.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
}

func (e *testEnv) seedAPIKey(t *testing.T) {
	t.Helper()
	key := &model.APIKey{
		KeyHash:   config.HashAPIKey(testRawAPIKey),
		KeyPrefix: testRawAPIKey[:12],
		Label:     "test bot",
		RateLimit: 100,
		IsActive:  true,
	}
	if err := e.store.CreateAPIKey(context.Background(), key); err != nil {
		t.Fatalf("seedAPIKey: %v", err)
	}
}

func (e *testEnv) seedProduct(t *testing.T, guildID, name, groupID string) *model.Product {
	t.Helper()
	ctx := context.Background()
	if err := e.store.EnsureTenant(ctx, guildID); err != nil {
		t.Fatalf("EnsureTenant: %v", err)
	}
	p := &model.Product{
		GuildID: guildID,
		Name:    name,
		APIKey:  "ph_testcredential",
		GroupID: groupID,
		RoleID:  "255",
	}
	if err := e.store.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	return p
}

// adminToken logs in as the seeded admin and returns the JWT token string.
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	body := jsonBody(t, map[string]string{
		"email":    "admin@example.com",
		"password": testPassword,
	})
	rr := e.do(t, "POST", "/api/v1/admin/session", body, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Data struct {
			Token string `json:"session_token"`
		} `json:"data"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Data.Token == "" {
		t.Fatal("adminToken: got empty token from login")
	}
	return resp.Data.Token
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doAuth(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

func (e *testEnv) doAPIKey(t *testing.T, method, path string, body io.Reader, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{
		"X-API-Key": apiKey,
	})
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// envelope is the common response wrapper for assertions.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id"`
	Error     *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ---------------------------------------------------------------------------
// Health checks
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want ok", resp["status"])
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]interface{}
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want ok", resp["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/metrics", nil, nil)
	assertStatus(t, rr, http.StatusOK)
}

// ---------------------------------------------------------------------------
// Public verification
// ---------------------------------------------------------------------------

func TestVerifyMissIsOK(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "guild-1", "VIP", "100")

	body := jsonBody(t, map[string]int64{
		"roblox_user_id":  42,
		"roblox_group_id": 100,
	})
	rr := env.do(t, "POST", "/api/v1/whitelist/verify", body, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp envelope
	decodeJSON(t, rr, &resp)
	if !resp.Success {
		t.Error("expected success envelope for a miss")
	}
	if resp.RequestID == "" {
		t.Error("expected request_id in envelope")
	}

	var data struct {
		Whitelisted bool   `json:"whitelisted"`
		ExpiryDate  string `json:"expiry_date"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Whitelisted {
		t.Error("unredeemed user reported as whitelisted")
	}
	if data.ExpiryDate != "" {
		t.Errorf("miss carried expiry_date %q", data.ExpiryDate)
	}
}

func TestVerifyHit(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, "guild-1", "VIP", "100")
	if err := env.store.UpsertWhitelistEntry(context.Background(), p.ID, 42, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("UpsertWhitelistEntry: %v", err)
	}

	body := jsonBody(t, map[string]int64{
		"roblox_user_id":  42,
		"roblox_group_id": 100,
	})
	rr := env.do(t, "POST", "/api/v1/whitelist/verify", body, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp envelope
	decodeJSON(t, rr, &resp)
	var data struct {
		Whitelisted bool   `json:"whitelisted"`
		ExpiryDate  string `json:"expiry_date"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if !data.Whitelisted {
		t.Error("whitelisted user reported as miss")
	}
	if _, err := time.Parse(time.RFC3339, data.ExpiryDate); err != nil {
		t.Errorf("expiry_date %q is not RFC3339: %v", data.ExpiryDate, err)
	}
}

func TestVerifyMalformedInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		desc string
		body string
	}{
		{"string user id", `{"roblox_user_id":"42","roblox_group_id":100}`},
		{"negative user id", `{"roblox_user_id":-1,"roblox_group_id":100}`},
		{"zero group id", `{"roblox_user_id":42,"roblox_group_id":0}`},
		{"not json", `whitelisted please`},
		{"unknown field", `{"roblox_user_id":42,"roblox_group_id":100,"admin":true}`},
	}

	for _, tt := range tests {
		rr := env.do(t, "POST", "/api/v1/whitelist/verify", bytes.NewBufferString(tt.body), nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400; body = %s", tt.desc, rr.Code, rr.Body.String())
		}
		var resp envelope
		decodeJSON(t, rr, &resp)
		if resp.Success || resp.Error == nil {
			t.Errorf("%s: expected error envelope", tt.desc)
		}
	}
}

// ---------------------------------------------------------------------------
// Redemption
// ---------------------------------------------------------------------------

func redeemBody(t *testing.T, guildID string) *bytes.Buffer {
	t.Helper()
	return jsonBody(t, map[string]interface{}{
		"guild_id":       guildID,
		"roblox_user_id": 42,
		"license_key":    "KEY-123",
	})
}

func TestRedeemRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/redeem", redeemBody(t, "guild-1"), nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestRedeemRejectsUnknownKey(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doAPIKey(t, "POST", "/api/v1/redeem", redeemBody(t, "guild-1"), "ggk_wrong")
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestRedeemEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.seedAPIKey(t)
	env.seedProduct(t, "guild-1", "VIP", "100")

	rr := env.doAPIKey(t, "POST", "/api/v1/redeem", redeemBody(t, "guild-1"), testRawAPIKey)
	assertStatus(t, rr, http.StatusOK)

	var resp envelope
	decodeJSON(t, rr, &resp)
	var data struct {
		Product   string    `json:"product"`
		GroupID   string    `json:"group_id"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Product != "VIP" || data.GroupID != "100" {
		t.Errorf("got %q/%q, want VIP/100", data.Product, data.GroupID)
	}

	// The redeemed user now verifies as whitelisted.
	body := jsonBody(t, map[string]int64{"roblox_user_id": 42, "roblox_group_id": 100})
	rr = env.do(t, "POST", "/api/v1/whitelist/verify", body, nil)
	assertStatus(t, rr, http.StatusOK)
}

func TestRedeemDisabledKeyRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seedAPIKey(t)
	env.seedProduct(t, "guild-1", "VIP", "100")
	env.licenseEnabled = false

	rr := env.doAPIKey(t, "POST", "/api/v1/redeem", redeemBody(t, "guild-1"), testRawAPIKey)
	assertStatus(t, rr, http.StatusUnprocessableEntity)
}

func TestRedeemNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.seedAPIKey(t)

	rr := env.doAPIKey(t, "POST", "/api/v1/redeem", redeemBody(t, "guild-1"), testRawAPIKey)
	assertStatus(t, rr, http.StatusConflict)
}

func TestRedeemChoiceRequired(t *testing.T) {
	env := newTestEnv(t)
	env.seedAPIKey(t)
	env.seedProduct(t, "guild-1", "Alpha", "100")
	env.seedProduct(t, "guild-1", "Beta", "200")

	rr := env.doAPIKey(t, "POST", "/api/v1/redeem", redeemBody(t, "guild-1"), testRawAPIKey)
	assertStatus(t, rr, http.StatusBadRequest)

	var resp envelope
	decodeJSON(t, rr, &resp)
	if resp.Error == nil {
		t.Fatal("expected error envelope")
	}
}

// ---------------------------------------------------------------------------
// Admin product management
// ---------------------------------------------------------------------------

func TestProductCRUDRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.seedAPIKey(t)

	// No auth at all.
	rr := env.do(t, "GET", "/api/v1/tenants/guild-1/products/", nil, nil)
	assertStatus(t, rr, http.StatusUnauthorized)

	// API key authenticates but is not an admin.
	rr = env.doAPIKey(t, "GET", "/api/v1/tenants/guild-1/products/", nil, testRawAPIKey)
	assertStatus(t, rr, http.StatusForbidden)
}

func TestProductLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	// Create
	body := jsonBody(t, map[string]string{
		"name":    "VIP Access",
		"api_key": "ph_testcredential",
		"group_id": "7654321",
		"role_id": "255",
	})
	rr := env.doAuth(t, "POST", "/api/v1/tenants/guild-1/products/", body, token)
	assertStatus(t, rr, http.StatusCreated)

	var created envelope
	decodeJSON(t, rr, &created)
	var product struct {
		Name   string `json:"name"`
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(created.Data, &product); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if product.APIKey != "" {
		t.Error("credential leaked in create response")
	}

	// Duplicate
	body = jsonBody(t, map[string]string{
		"name":    "VIP Access",
		"api_key": "ph_other",
		"group_id": "999",
	})
	rr = env.doAuth(t, "POST", "/api/v1/tenants/guild-1/products/", body, token)
	assertStatus(t, rr, http.StatusConflict)

	// Invalid credential prefix
	body = jsonBody(t, map[string]string{
		"name":    "Broken",
		"api_key": "sk_wrong",
		"group_id": "999",
	})
	rr = env.doAuth(t, "POST", "/api/v1/tenants/guild-1/products/", body, token)
	assertStatus(t, rr, http.StatusBadRequest)

	// List
	rr = env.doAuth(t, "GET", "/api/v1/tenants/guild-1/products/", nil, token)
	assertStatus(t, rr, http.StatusOK)

	// Partial update
	body = jsonBody(t, map[string]string{"message": "See you in game"})
	rr = env.doAuth(t, "PATCH", "/api/v1/tenants/guild-1/products/VIP%20Access", body, token)
	assertStatus(t, rr, http.StatusOK)

	// Delete
	rr = env.doAuth(t, "DELETE", "/api/v1/tenants/guild-1/products/VIP%20Access", nil, token)
	assertStatus(t, rr, http.StatusOK)

	// Update after delete
	body = jsonBody(t, map[string]string{"message": "gone"})
	rr = env.doAuth(t, "PATCH", "/api/v1/tenants/guild-1/products/VIP%20Access", body, token)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	body := jsonBody(t, map[string]string{
		"email":    "admin@example.com",
		"password": "wrong",
	})
	rr := env.do(t, "POST", "/api/v1/admin/session", body, nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}
