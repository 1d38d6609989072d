package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

func TestCreateUserEmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.CreateUser(ctx, &store.User{Email: "A@B.com", Role: store.RoleUser}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.CreateUser(ctx, &store.User{Email: "a@b.COM", Role: store.RoleUser})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	u, err := s.GetUserByEmail(ctx, " a@B.com ")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if u.Email != "a@b.com" {
		t.Fatalf("email not normalised: %q", u.Email)
	}
}

func TestDeleteProviderCascades(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := &store.Provider{Name: "Green Thumb"}
	other := &store.Provider{Name: "Other"}
	_ = s.CreateProvider(ctx, p)
	_ = s.CreateProvider(ctx, other)
	u := &store.User{Email: "t@x.io", Role: store.RoleTrader, ProviderID: p.ID}
	_ = s.CreateUser(ctx, u)
	_ = s.CreateListing(ctx, &store.Listing{Title: "Lawn", ProviderID: p.ID, Status: store.ListingListed})
	_ = s.CreateListing(ctx, &store.Listing{Title: "Keep", ProviderID: other.ID, Status: store.ListingListed})
	_ = s.CreateOrder(ctx, &store.Order{ProviderID: p.ID, CustomerID: "c1", Status: "discuss"})

	if err := s.DeleteProvider(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetProvider(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("provider still present: %v", err)
	}
	listings, _ := s.ListListings(ctx, store.ListingFilter{})
	if len(listings) != 1 || listings[0].Title != "Keep" {
		t.Fatalf("unexpected listings after cascade: %+v", listings)
	}
	orders, _ := s.ListOrders(ctx, store.OrderFilter{ProviderID: p.ID})
	if len(orders) != 0 {
		t.Fatalf("orders not removed: %+v", orders)
	}
	got, _ := s.GetUser(ctx, u.ID)
	if got.ProviderID != "" {
		t.Fatalf("user still linked to %q", got.ProviderID)
	}
}

func TestUpdateListingRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := New()

	l := &store.Listing{Title: "Lawn", ProviderID: "p1", Status: store.ListingListed}
	_ = s.CreateListing(ctx, l)

	first, _ := s.GetListing(ctx, l.ID)
	second, _ := s.GetListing(ctx, l.ID)

	first.Price = 90
	if err := s.UpdateListing(ctx, first); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if first.Version != 2 {
		t.Fatalf("version = %d, want 2", first.Version)
	}

	second.Price = 10
	if err := s.UpdateListing(ctx, second); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	cur, _ := s.GetListing(ctx, l.ID)
	if cur.Price != 90 {
		t.Fatalf("stale write applied: price %v", cur.Price)
	}
}

func TestInteractionsAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, amt := range []float64{50, 75} {
		if err := s.CreateInteraction(ctx, &store.Interaction{UserID: "u1", ProviderID: "p1", Amount: amt}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	got, _ := s.ListInteractions(ctx, store.InteractionFilter{UserID: "u1", ProviderID: "p1"})
	if len(got) != 2 {
		t.Fatalf("got %d interactions, want 2", len(got))
	}
	if got[0].Amount != 75 || got[1].Amount != 50 {
		t.Fatalf("expected newest first, got %+v", got)
	}
}

func TestFindLatestOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	_ = s.CreateOrder(ctx, &store.Order{CustomerID: "c", ProviderID: "p", ListingID: "l", Status: "denied"})
	latest := &store.Order{CustomerID: "c", ProviderID: "p", ListingID: "l", Status: "discuss"}
	_ = s.CreateOrder(ctx, latest)
	_ = s.CreateOrder(ctx, &store.Order{CustomerID: "c", ProviderID: "p", ListingID: "other", Status: "approved"})

	o, err := s.FindLatestOrder(ctx, "c", "p", "l")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if o.ID != latest.ID {
		t.Fatalf("got order %s, want %s", o.ID, latest.ID)
	}

	if _, err := s.FindLatestOrder(ctx, "nobody", "p", "l"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendMessageUpdatesLastMessage(t *testing.T) {
	ctx := context.Background()
	s := New()

	c := &store.Conversation{Kind: "chat", Title: "hello"}
	_ = s.CreateConversation(ctx, c)
	_ = s.AddMember(ctx, c.ID, "u1")
	_ = s.AddMember(ctx, c.ID, "u1")

	members, _ := s.ListMembers(ctx, c.ID)
	if len(members) != 1 {
		t.Fatalf("duplicate membership: %v", members)
	}

	uid := "u1"
	_ = s.AppendMessage(ctx, &store.Message{ConversationID: c.ID, UserID: &uid, Role: store.MessageRoleUser, Content: "hi"})
	_ = s.AppendMessage(ctx, &store.Message{ConversationID: c.ID, Role: store.MessageRoleAssistant, Content: "You said: hi"})

	got, _ := s.GetConversation(ctx, c.ID)
	if got.LastMessage != "You said: hi" {
		t.Fatalf("lastMessage = %q", got.LastMessage)
	}
	msgs, _ := s.ListMessages(ctx, c.ID)
	if len(msgs) != 2 || msgs[0].Content != "hi" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
}

func TestOrderUpdatesAreNotAliased(t *testing.T) {
	ctx := context.Background()
	s := New()

	o := &store.Order{CustomerID: "c", ProviderID: "p", Status: "discuss"}
	_ = s.CreateOrder(ctx, o)

	got, _ := s.GetOrder(ctx, o.ID)
	got.Request.Updates = append(got.Request.Updates, store.OrderUpdate{From: "customer", Message: "x"})

	again, _ := s.GetOrder(ctx, o.ID)
	if len(again.Request.Updates) != 0 {
		t.Fatalf("store mutated through returned value: %+v", again.Request.Updates)
	}
}
