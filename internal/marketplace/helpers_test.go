package marketplace

import (
	"testing"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

func ptr[T any](v T) *T { return &v }

func TestNormalizeTags(t *testing.T) {
	tests := map[string]string{
		"home, outdoor":          "home,outdoor",
		" Home ,home,,OUTDOOR, ": "Home,OUTDOOR",
		"":                       "",
		",,":                     "",
	}
	for in, want := range tests {
		if got := normalizeTags(in); got != want {
			t.Errorf("normalizeTags(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestApplyListingKeepsAbsentFields(t *testing.T) {
	l := &store.Listing{Title: "Lawn Care", Description: "mowing", Price: 85, Status: store.ListingListed}

	if msg := applyListing(l, &ListingRequest{Price: ptr(90.0)}); msg != "" {
		t.Fatalf("unexpected validation error %q", msg)
	}
	if l.Title != "Lawn Care" || l.Description != "mowing" || l.Price != 90 {
		t.Fatalf("listing = %+v", l)
	}

	if msg := applyListing(l, &ListingRequest{Price: ptr(-1.0)}); msg == "" {
		t.Fatal("negative price accepted")
	}
	if msg := applyListing(l, &ListingRequest{Status: ptr("archived")}); msg == "" {
		t.Fatal("unknown status accepted")
	}
	if msg := applyListing(l, &ListingRequest{Status: ptr("draft")}); msg != "" || l.Status != store.ListingDraft {
		t.Fatalf("status = %q, msg = %q", l.Status, msg)
	}
}

func TestApplyProfileMergesAttributes(t *testing.T) {
	p := &store.Provider{
		Name:       "Ada",
		Bio:        "gardener",
		Attributes: map[string]any{"van": true, "radius": 10.0},
	}
	applyProfile(p, &ProfileRequest{
		Name:       ptr("  "),
		Location:   ptr(" Leeds "),
		Attributes: map[string]any{"radius": 25.0, "van": nil, "insured": true},
	})

	if p.Name != "Ada" {
		t.Fatalf("blank name overwrote: %q", p.Name)
	}
	if p.Bio != "gardener" || p.Location != "Leeds" {
		t.Fatalf("profile = %+v", p)
	}
	if _, ok := p.Attributes["van"]; ok {
		t.Fatalf("nil attribute not removed: %v", p.Attributes)
	}
	if p.Attributes["radius"] != 25.0 || p.Attributes["insured"] != true {
		t.Fatalf("attributes = %v", p.Attributes)
	}
}

func TestRatingHelpers(t *testing.T) {
	for in, want := range map[int]int{-3: 1, 0: 1, 3: 3, 5: 5, 9: 5} {
		if got := clampRating(in); got != want {
			t.Errorf("clampRating(%d) = %d", in, got)
		}
	}
	if got := averageRating(nil); got != 5.0 {
		t.Fatalf("empty average = %v", got)
	}
	if got := averageRating([]store.Review{{Rating: 4}, {Rating: 5}, {Rating: 3}}); got != 4.0 {
		t.Fatalf("average = %v", got)
	}
}
