package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sudo-init-do/tradeexchange/internal/store"
)

const listingColumns = `id, title, description, price, provider_id, status, tags, created_at,
    COALESCE(updated_at, created_at), version`

func scanListing(row scanner) (store.Listing, error) {
	var l store.Listing
	err := row.Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.ProviderID, &l.Status, &l.Tags,
		&l.CreatedAt, &l.UpdatedAt, &l.Version)
	return l, err
}

func (s *Store) CreateListing(ctx context.Context, l *store.Listing) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	l.UpdatedAt = l.CreatedAt
	l.Version = 1

	_, err := s.pool.Exec(ctx, `
        INSERT INTO listings (id, title, description, price, provider_id, status, tags, created_at, updated_at, version)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9)`,
		l.ID, l.Title, l.Description, l.Price, l.ProviderID, l.Status, l.Tags, l.CreatedAt, l.Version,
	)
	if err != nil {
		return execErr("insert listing", err)
	}
	return nil
}

func (s *Store) GetListing(ctx context.Context, id string) (*store.Listing, error) {
	l, err := scanListing(s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	if err != nil {
		return nil, rowErr("get listing", err)
	}
	return &l, nil
}

func (s *Store) ListListings(ctx context.Context, f store.ListingFilter) ([]store.Listing, error) {
	var (
		where []string
		args  []any
	)
	if f.ProviderID != "" {
		args = append(args, f.ProviderID)
		where = append(where, fmt.Sprintf("provider_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag != "" {
		args = append(args, tag)
		where = append(where, fmt.Sprintf(
			"$%d = ANY (SELECT LOWER(TRIM(t)) FROM unnest(string_to_array(tags, ',')) AS t)", len(args)))
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at`

	out := []store.Listing{}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return out, s.listErr("list listings", err)
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return []store.Listing{}, s.listErr("scan listing", err)
		}
		out = append(out, l)
	}
	return out, s.listErr("list listings", rows.Err())
}

func (s *Store) UpdateListing(ctx context.Context, l *store.Listing) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
        UPDATE listings SET title = $3, description = $4, price = $5, status = $6, tags = $7,
            updated_at = $8, version = version + 1
        WHERE id = $1 AND version = $2`,
		l.ID, l.Version, l.Title, l.Description, l.Price, l.Status, l.Tags, now,
	)
	if err != nil {
		return execErr("update listing", err)
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, "listings", l.ID)
	}
	l.Version++
	l.UpdatedAt = now
	return nil
}

func (s *Store) DeleteListing(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return execErr("delete listing", err)
	}
	return affected(tag)
}

// staleOrMissing tells a version mismatch apart from a deleted row after a
// guarded update touched nothing.
func (s *Store) staleOrMissing(ctx context.Context, table, id string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check %s: %w", table, err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}
