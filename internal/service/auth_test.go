package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/groupgate/groupgate/internal/config"
	"github.com/groupgate/groupgate/internal/model"
)

func TestValidateAPIKey(t *testing.T) {
	store := newTestStore(t)
	svc := NewAuthService(store, "test-secret")
	ctx := context.Background()

	raw := "ggk_0123456789abcdef"
	key := &model.APIKey{
		KeyHash:   config.HashAPIKey(raw),
		KeyPrefix: raw[:12],
		RateLimit: 60,
		IsActive:  true,
	}
	if err := store.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	p, err := svc.ValidateAPIKey(ctx, raw)
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if p.KeyPrefix != raw[:12] {
		t.Errorf("got prefix %q, want %q", p.KeyPrefix, raw[:12])
	}
	if p.RateLimit != 60 {
		t.Errorf("got rate limit %d, want 60", p.RateLimit)
	}

	if _, err := svc.ValidateAPIKey(ctx, "ggk_wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("got %v, want ErrInvalidCredentials for unknown key", err)
	}
}

func TestValidateAPIKeyRevoked(t *testing.T) {
	store := newTestStore(t)
	svc := NewAuthService(store, "test-secret")
	ctx := context.Background()

	raw := "ggk_0123456789abcdef"
	key := &model.APIKey{
		KeyHash:   config.HashAPIKey(raw),
		KeyPrefix: raw[:12],
		RateLimit: 60,
		IsActive:  true,
	}
	if err := store.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}
	if err := store.RevokeAPIKey(ctx, key.ID); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}

	if _, err := svc.ValidateAPIKey(ctx, raw); err == nil {
		t.Fatal("expected error validating revoked key")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	store := newTestStore(t)
	svc := NewAuthService(store, "test-secret")
	ctx := context.Background()

	token, err := svc.IssueJWT(ctx, 7, "admin@example.com", time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	p, err := svc.ValidateJWT(ctx, token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if p.AdminID != 7 || p.Email != "admin@example.com" {
		t.Errorf("got principal %+v", p)
	}

	// A token signed with a different secret is rejected.
	other := NewAuthService(store, "other-secret")
	if _, err := other.ValidateJWT(ctx, token); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("got %v, want ErrInvalidCredentials for wrong secret", err)
	}
}

func TestJWTExpired(t *testing.T) {
	store := newTestStore(t)
	svc := NewAuthService(store, "test-secret")
	ctx := context.Background()

	token, err := svc.IssueJWT(ctx, 7, "admin@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if _, err := svc.ValidateJWT(ctx, token); err == nil {
		t.Fatal("expected error validating expired token")
	}
}
