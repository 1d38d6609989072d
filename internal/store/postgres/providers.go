package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sudo-init-do/tradeexchange/internal/store"
)

const providerColumns = `id, name, role, rating, completed_jobs, bio, location, email, phone, website,
    hourly_rate, availability, attributes, created_at, COALESCE(updated_at, created_at)`

func scanProvider(row scanner) (store.Provider, error) {
	var (
		p     store.Provider
		attrs []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Role, &p.Rating, &p.CompletedJobs, &p.Bio, &p.Location,
		&p.Email, &p.Phone, &p.Website, &p.HourlyRate, &p.Availability, &attrs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return p, fmt.Errorf("decode provider attributes: %w", err)
		}
	}
	return p, nil
}

func encodeAttributes(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(m)
}

func (s *Store) CreateProvider(ctx context.Context, p *store.Provider) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	attrs, err := encodeAttributes(p.Attributes)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
        INSERT INTO providers (id, name, role, rating, completed_jobs, bio, location, email, phone, website,
            hourly_rate, availability, attributes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		p.ID, p.Name, p.Role, p.Rating, p.CompletedJobs, p.Bio, p.Location, p.Email, p.Phone, p.Website,
		p.HourlyRate, p.Availability, attrs, p.CreatedAt,
	)
	if err != nil {
		return execErr("insert provider", err)
	}
	return nil
}

func (s *Store) GetProvider(ctx context.Context, id string) (*store.Provider, error) {
	p, err := scanProvider(s.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = $1`, id))
	if err != nil {
		return nil, rowErr("get provider", err)
	}
	return &p, nil
}

func (s *Store) ListProviders(ctx context.Context) ([]store.Provider, error) {
	out := []store.Provider{}
	rows, err := s.pool.Query(ctx, `SELECT `+providerColumns+` FROM providers ORDER BY created_at`)
	if err != nil {
		return out, s.listErr("list providers", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return []store.Provider{}, s.listErr("scan provider", err)
		}
		out = append(out, p)
	}
	return out, s.listErr("list providers", rows.Err())
}

func (s *Store) UpdateProvider(ctx context.Context, p *store.Provider) error {
	attrs, err := encodeAttributes(p.Attributes)
	if err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
        UPDATE providers SET name = $2, rating = $3, completed_jobs = $4, bio = $5, location = $6,
            email = $7, phone = $8, website = $9, hourly_rate = $10, availability = $11,
            attributes = $12, updated_at = $13
        WHERE id = $1`,
		p.ID, p.Name, p.Rating, p.CompletedJobs, p.Bio, p.Location, p.Email, p.Phone, p.Website,
		p.HourlyRate, p.Availability, attrs, p.UpdatedAt,
	)
	if err != nil {
		return execErr("update provider", err)
	}
	return affected(tag)
}

// DeleteProvider runs the cascade in a single transaction.
func (s *Store) DeleteProvider(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete provider: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM providers WHERE id = $1`, id)
	if err != nil {
		return execErr("delete provider", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	cascade := []string{
		`DELETE FROM listings WHERE provider_id = $1`,
		`DELETE FROM reviews WHERE provider_id = $1`,
		`DELETE FROM orders WHERE provider_id = $1`,
		`UPDATE users SET provider_id = NULL WHERE provider_id = $1`,
	}
	for _, stmt := range cascade {
		if _, err := tx.Exec(ctx, stmt, id); err != nil {
			return execErr("cascade provider delete", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete provider: %w", err)
	}
	return nil
}
