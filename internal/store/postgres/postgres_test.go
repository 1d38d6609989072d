package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/sudo-init-do/tradeexchange/internal/db"
	"github.com/sudo-init-do/tradeexchange/internal/logging"
	"github.com/sudo-init-do/tradeexchange/internal/store"
)

// newTestStore connects to TEST_DATABASE_URL and skips when it is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	logger := logging.Discard()
	if err := db.EnsureSchema(ctx, pool, logger); err != nil {
		pool.Close()
		t.Fatalf("schema: %v", err)
	}
	s := New(pool, true, logger)
	t.Cleanup(s.Close)
	return s
}

func TestPostgresUserEmailUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	email := uuid.NewString() + "@Example.com"
	if err := s.CreateUser(ctx, &store.User{Email: email, PasswordHash: "x", Role: store.RoleUser}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.CreateUser(ctx, &store.User{Email: email, PasswordHash: "y", Role: store.RoleUser})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestPostgresListingVersioning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l := &store.Listing{Title: "Lawn Care", Price: 85, ProviderID: uuid.NewString(), Status: store.ListingListed, Tags: "home,outdoor"}
	if err := s.CreateListing(ctx, l); err != nil {
		t.Fatalf("create: %v", err)
	}
	stale := *l

	l.Price = 95
	if err := s.UpdateListing(ctx, l); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.UpdateListing(ctx, &stale); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	tagged, err := s.ListListings(ctx, store.ListingFilter{ProviderID: l.ProviderID, Tag: "Outdoor"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tagged) != 1 {
		t.Fatalf("tag filter returned %d listings", len(tagged))
	}
}

func TestPostgresDeleteProviderCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &store.Provider{Name: "Cascade", Role: "PROVIDER", Rating: 5}
	if err := s.CreateProvider(ctx, p); err != nil {
		t.Fatalf("create provider: %v", err)
	}
	_ = s.CreateListing(ctx, &store.Listing{Title: "Gone", ProviderID: p.ID, Status: store.ListingListed})
	_ = s.CreateOrder(ctx, &store.Order{CustomerID: uuid.NewString(), ProviderID: p.ID, Service: "x", Status: "discuss"})

	if err := s.DeleteProvider(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	listings, _ := s.ListListings(ctx, store.ListingFilter{ProviderID: p.ID})
	orders, _ := s.ListOrders(ctx, store.OrderFilter{ProviderID: p.ID})
	if len(listings) != 0 || len(orders) != 0 {
		t.Fatalf("cascade left %d listings and %d orders", len(listings), len(orders))
	}
}
