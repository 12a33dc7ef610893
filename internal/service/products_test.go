package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/groupgate/groupgate/internal/model"
)

func newProductFixture(t *testing.T) *ProductService {
	t.Helper()
	return NewProductService(newTestStore(t), time.Minute, testLogger())
}

func validProduct(guildID, name string) *model.Product {
	return &model.Product{
		GuildID: guildID,
		Name:    name,
		APIKey:  "ph_testcredential",
		GroupID: "7654321",
	}
}

func TestAddValidation(t *testing.T) {
	svc := newProductFixture(t)
	ctx := context.Background()

	tests := []struct {
		desc    string
		mutate  func(*model.Product)
		field   string
	}{
		{"empty name", func(p *model.Product) { p.Name = "" }, "name"},
		{"oversized name", func(p *model.Product) { p.Name = strings.Repeat("x", 101) }, "name"},
		{"oversized multibyte name", func(p *model.Product) { p.Name = strings.Repeat("游", 101) }, "name"},
		{"bad credential prefix", func(p *model.Product) { p.APIKey = "sk_wrong" }, "api_key"},
		{"empty group", func(p *model.Product) { p.GroupID = "" }, "group_id"},
		{"non-numeric group", func(p *model.Product) { p.GroupID = "my-group" }, "group_id"},
	}

	for _, tt := range tests {
		p := validProduct("guild-1", "VIP")
		tt.mutate(p)
		err := svc.Add(ctx, p)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%s: got %v, want *ConfigError", tt.desc, err)
			continue
		}
		if cfgErr.Field != tt.field {
			t.Errorf("%s: got field %q, want %q", tt.desc, cfgErr.Field, tt.field)
		}
	}
}

func TestAddMultibyteNameWithinLimit(t *testing.T) {
	svc := newProductFixture(t)
	ctx := context.Background()

	// 40 characters, well over 100 bytes in UTF-8.
	name := strings.Repeat("游戏会员", 10)
	if err := svc.Add(ctx, validProduct("guild-1", name)); err != nil {
		t.Fatalf("Add with 40-character multibyte name: %v", err)
	}

	list, err := svc.List(ctx, "guild-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Name != name {
		t.Errorf("got %+v, want the multibyte-named product", list)
	}
}

func TestAddDuplicateRejected(t *testing.T) {
	svc := newProductFixture(t)
	ctx := context.Background()

	if err := svc.Add(ctx, validProduct("guild-1", "VIP")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	dup := validProduct("guild-1", "VIP")
	dup.GroupID = "999"
	if err := svc.Add(ctx, dup); !errors.Is(err, ErrDuplicateProduct) {
		t.Fatalf("got %v, want ErrDuplicateProduct", err)
	}

	// The original must be untouched.
	list, err := svc.List(ctx, "guild-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].GroupID != "7654321" {
		t.Errorf("existing product modified by rejected duplicate: %+v", list)
	}
}

func TestUpdatePartial(t *testing.T) {
	svc := newProductFixture(t)
	ctx := context.Background()

	if err := svc.Add(ctx, validProduct("guild-1", "VIP")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	msg := "See you in game"
	p, err := svc.Update(ctx, "guild-1", "VIP", model.ProductUpdate{Message: &msg})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Message != msg {
		t.Errorf("got message %q, want %q", p.Message, msg)
	}
	if p.GroupID != "7654321" {
		t.Errorf("untouched field changed: group %q", p.GroupID)
	}

	// Changed fields are re-validated.
	bad := "not-numeric"
	if _, err := svc.Update(ctx, "guild-1", "VIP", model.ProductUpdate{GroupID: &bad}); err == nil {
		t.Fatal("expected validation error updating group to non-numeric value")
	}
}

func TestResolveCachesAndInvalidates(t *testing.T) {
	svc := newProductFixture(t)
	ctx := context.Background()

	if err := svc.Add(ctx, validProduct("guild-1", "VIP")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	first, err := svc.Resolve(ctx, "guild-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("got %d products, want 1", len(first))
	}

	// Adding a second product invalidates the cache, so the next Resolve
	// sees it immediately.
	if err := svc.Add(ctx, validProduct("guild-1", "Premium")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	second, err := svc.Resolve(ctx, "guild-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(second) != 2 {
		t.Errorf("got %d products after add, want 2", len(second))
	}

	if err := svc.Remove(ctx, "guild-1", "VIP"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	third, err := svc.Resolve(ctx, "guild-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(third) != 1 || third[0].Name != "Premium" {
		t.Errorf("got %+v after remove, want only Premium", third)
	}
}
