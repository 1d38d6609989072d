package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sudo-init-do/tradeexchange/internal/store"
)

func (s *Store) CreateInteraction(ctx context.Context, i *store.Interaction) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.At.IsZero() {
		i.At = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
        INSERT INTO interactions (id, user_id, provider_id, listing_id, at, note, amount, reference)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`,
		i.ID, i.UserID, i.ProviderID, i.ListingID, i.At, i.Note, i.Amount, i.Reference,
	)
	if err != nil {
		return execErr("insert interaction", err)
	}
	return nil
}

func (s *Store) ListInteractions(ctx context.Context, f store.InteractionFilter) ([]store.Interaction, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.ProviderID != "" {
		args = append(args, f.ProviderID)
		where = append(where, fmt.Sprintf("provider_id = $%d", len(args)))
	}
	query := `SELECT id, user_id, provider_id, COALESCE(listing_id, ''), at, note, amount, reference FROM interactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY at DESC`

	out := []store.Interaction{}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return out, s.listErr("list interactions", err)
	}
	defer rows.Close()

	for rows.Next() {
		var i store.Interaction
		if err := rows.Scan(&i.ID, &i.UserID, &i.ProviderID, &i.ListingID, &i.At, &i.Note, &i.Amount, &i.Reference); err != nil {
			return []store.Interaction{}, s.listErr("scan interaction", err)
		}
		out = append(out, i)
	}
	return out, s.listErr("list interactions", rows.Err())
}

func (s *Store) CreateReview(ctx context.Context, r *store.Review) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
        INSERT INTO reviews (id, provider_id, order_id, author_id, rating, text, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.ProviderID, r.OrderID, r.AuthorID, r.Rating, r.Text, r.CreatedAt,
	)
	if err != nil {
		return execErr("insert review", err)
	}
	return nil
}

func (s *Store) ListReviews(ctx context.Context, providerID string) ([]store.Review, error) {
	out := []store.Review{}
	rows, err := s.pool.Query(ctx, `
        SELECT id, provider_id, order_id, author_id, rating, text, created_at
        FROM reviews WHERE provider_id = $1 ORDER BY created_at DESC`, providerID)
	if err != nil {
		return out, s.listErr("list reviews", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r store.Review
		if err := rows.Scan(&r.ID, &r.ProviderID, &r.OrderID, &r.AuthorID, &r.Rating, &r.Text, &r.CreatedAt); err != nil {
			return []store.Review{}, s.listErr("scan review", err)
		}
		out = append(out, r)
	}
	return out, s.listErr("list reviews", rows.Err())
}
