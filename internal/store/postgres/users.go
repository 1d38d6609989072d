package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sudo-init-do/tradeexchange/internal/store"
)

const userColumns = `id, name, email, password_hash, role, COALESCE(provider_id, ''), created_at`

func scanUser(row scanner) (store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.ProviderID, &u.CreatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	_, err := s.pool.Exec(ctx, `
        INSERT INTO users (id, name, email, password_hash, role, provider_id, created_at)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.ProviderID, u.CreatedAt,
	)
	if err != nil {
		return execErr("insert user", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, rowErr("get user", err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`, email))
	if err != nil {
		return nil, rowErr("get user by email", err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]store.User, error) {
	out := []store.User{}
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return out, s.listErr("list users", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return []store.User{}, s.listErr("scan user", err)
		}
		out = append(out, u)
	}
	return out, s.listErr("list users", rows.Err())
}

func (s *Store) UpdateUser(ctx context.Context, u *store.User) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE users SET name = $2, role = $3, provider_id = NULLIF($4, ''), password_hash = $5
        WHERE id = $1`,
		u.ID, u.Name, u.Role, u.ProviderID, u.PasswordHash,
	)
	if err != nil {
		return execErr("update user", err)
	}
	return affected(tag)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return execErr("delete user", err)
	}
	return affected(tag)
}
