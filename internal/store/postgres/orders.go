package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sudo-init-do/tradeexchange/internal/store"
)

const orderColumns = `id, customer_id, customer_name, provider_id, COALESCE(listing_id, ''), service, status,
    amount, COALESCE(conversation_id, ''), request, created_at, COALESCE(updated_at, created_at), version`

func scanOrder(row scanner) (store.Order, error) {
	var (
		o      store.Order
		convID string
		req    []byte
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.ProviderID, &o.ListingID, &o.Service, &o.Status,
		&o.Amount, &convID, &req, &o.CreatedAt, &o.UpdatedAt, &o.Version)
	if err != nil {
		return o, err
	}
	if len(req) > 0 {
		if err := json.Unmarshal(req, &o.Request); err != nil {
			return o, fmt.Errorf("decode order request: %w", err)
		}
	}
	o.Request.ConversationID = convID
	return o, nil
}

func (s *Store) CreateOrder(ctx context.Context, o *store.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt
	o.Version = 1
	req, err := json.Marshal(o.Request)
	if err != nil {
		return fmt.Errorf("encode order request: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
        INSERT INTO orders (id, customer_id, customer_name, provider_id, listing_id, service, status, amount,
            conversation_id, request, created_at, updated_at, version)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''), $10, $11, $11, $12)`,
		o.ID, o.CustomerID, o.CustomerName, o.ProviderID, o.ListingID, o.Service, o.Status, o.Amount,
		o.Request.ConversationID, req, o.CreatedAt, o.Version,
	)
	if err != nil {
		return execErr("insert order", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*store.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, rowErr("get order", err)
	}
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]store.Order, error) {
	var (
		where []string
		args  []any
	)
	add := func(col, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("customer_id", f.CustomerID)
	add("provider_id", f.ProviderID)
	add("conversation_id", f.ConversationID)

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	out := []store.Order{}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return out, s.listErr("list orders", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return []store.Order{}, s.listErr("scan order", err)
		}
		out = append(out, o)
	}
	return out, s.listErr("list orders", rows.Err())
}

func (s *Store) FindLatestOrder(ctx context.Context, customerID, providerID, listingID string) (*store.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `
        SELECT `+orderColumns+` FROM orders
        WHERE customer_id = $1 AND provider_id = $2 AND ($3 = '' OR listing_id = $3)
        ORDER BY created_at DESC
        LIMIT 1`,
		customerID, providerID, listingID,
	))
	if err != nil {
		return nil, rowErr("find order", err)
	}
	return &o, nil
}

func (s *Store) UpdateOrder(ctx context.Context, o *store.Order) error {
	req, err := json.Marshal(o.Request)
	if err != nil {
		return fmt.Errorf("encode order request: %w", err)
	}
	now := time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
        UPDATE orders SET service = $3, status = $4, amount = $5, conversation_id = NULLIF($6, ''),
            request = $7, updated_at = $8, version = version + 1
        WHERE id = $1 AND version = $2`,
		o.ID, o.Version, o.Service, o.Status, o.Amount, o.Request.ConversationID, req, now,
	)
	if err != nil {
		return execErr("update order", err)
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, "orders", o.ID)
	}
	o.Version++
	o.UpdatedAt = now
	return nil
}
