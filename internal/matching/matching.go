// Package matching ranks providers against a free-text query. It is a plain
// substring heuristic over listing text plus a rating and job-count prior;
// there is no tokenisation or index.
package matching

import (
	"math"
	"slices"
	"strings"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

const (
	idealPrice  = 120.0
	priceSpread = 300.0
	hitWeight   = 2.0
)

type Result struct {
	store.Provider
	Score float64 `json:"score"`
}

// Normalize trims and lower-cases a query.
func Normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Haystack is the lower-cased text a query is matched against.
func Haystack(l store.Listing) string {
	return strings.ToLower(l.Title + " " + l.Description + " " + l.Tags)
}

// Hits counts non-overlapping occurrences of the normalised query q in l.
func Hits(l store.Listing, q string) int {
	if q == "" {
		return 0
	}
	return strings.Count(Haystack(l), q)
}

// PriceBonus is 1 at the ideal price and falls off linearly to 0.
func PriceBonus(price float64) float64 {
	b := 1 - math.Abs(price-idealPrice)/priceSpread
	return math.Max(0, math.Min(1, b))
}

// Prior is the score used for a blank query.
func Prior(p store.Provider) float64 {
	return 0.1 + p.Rating/10 + float64(p.CompletedJobs)/1000
}

// Authority is added to every non-blank query score.
func Authority(p store.Provider) float64 {
	return p.Rating*1.5 + math.Log10(float64(p.CompletedJobs)+1)
}

// Score computes p's relevance for q given p's own listings.
func Score(p store.Provider, listings []store.Listing, q string) float64 {
	q = Normalize(q)
	if q == "" {
		return Prior(p)
	}

	var total float64
	for _, l := range listings {
		total += float64(Hits(l, q))*hitWeight + PriceBonus(l.Price)
	}
	return total + Authority(p)
}

// Rank scores every provider once (the first occurrence of an id wins) and
// sorts them by score, highest first. Equal scores keep their input order.
func Rank(q string, providers []store.Provider, listings []store.Listing) []Result {
	byProvider := make(map[string][]store.Listing)
	for _, l := range listings {
		byProvider[l.ProviderID] = append(byProvider[l.ProviderID], l)
	}

	seen := make(map[string]bool, len(providers))
	out := make([]Result, 0, len(providers))
	for _, p := range providers {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, Result{Provider: p, Score: Score(p, byProvider[p.ID], q)})
	}

	slices.SortStableFunc(out, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return out
}

// MatchListings returns the listings whose text contains q, or all of them
// when q is blank.
func MatchListings(q string, listings []store.Listing) []store.Listing {
	q = Normalize(q)
	if q == "" {
		return listings
	}
	out := []store.Listing{}
	for _, l := range listings {
		if Hits(l, q) > 0 {
			out = append(out, l)
		}
	}
	return out
}
