package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sudo-init-do/tradeexchange/internal/store"
)

const conversationColumns = `c.id, c.kind, c.title, c.created_at, COALESCE(c.updated_at, c.created_at), c.last_message`

func scanConversation(row scanner) (store.Conversation, error) {
	var c store.Conversation
	err := row.Scan(&c.ID, &c.Kind, &c.Title, &c.CreatedAt, &c.UpdatedAt, &c.LastMessage)
	return c, err
}

func (s *Store) CreateConversation(ctx context.Context, c *store.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = c.CreatedAt
	_, err := s.pool.Exec(ctx, `
        INSERT INTO conversations (id, kind, title, last_message, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)`,
		c.ID, c.Kind, c.Title, c.LastMessage, c.CreatedAt,
	)
	if err != nil {
		return execErr("insert conversation", err)
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations c WHERE c.id = $1`, id))
	if err != nil {
		return nil, rowErr("get conversation", err)
	}
	return &c, nil
}

// FindConversations ignores the degraded mode: an empty answer here would
// make the caller open a duplicate conversation.
func (s *Store) FindConversations(ctx context.Context, title, memberID string) ([]store.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+conversationColumns+`
        FROM conversations c
        JOIN conversation_members m ON m.conversation_id = c.id
        WHERE c.title = $1 AND m.user_id = $2
        ORDER BY c.created_at, c.id`, title, memberID)
	if err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	defer rows.Close()

	out := []store.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	return out, nil
}

func (s *Store) ListConversations(ctx context.Context, memberID string) ([]store.Conversation, error) {
	out := []store.Conversation{}
	rows, err := s.pool.Query(ctx, `
        SELECT `+conversationColumns+`
        FROM conversations c
        JOIN conversation_members m ON m.conversation_id = c.id
        WHERE m.user_id = $1
        ORDER BY COALESCE(c.updated_at, c.created_at) DESC`, memberID)
	if err != nil {
		return out, s.listErr("list conversations", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return []store.Conversation{}, s.listErr("scan conversation", err)
		}
		out = append(out, c)
	}
	return out, s.listErr("list conversations", rows.Err())
}

func (s *Store) AddMember(ctx context.Context, conversationID, userID string) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)
        ON CONFLICT DO NOTHING`, conversationID, userID)
	if err != nil {
		return execErr("add member", err)
	}
	return nil
}

func (s *Store) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM conversation_members WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

func (s *Store) ListMembers(ctx context.Context, conversationID string) ([]string, error) {
	out := []string{}
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM conversation_members WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return out, s.listErr("list members", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return []string{}, s.listErr("scan member", err)
		}
		out = append(out, id)
	}
	return out, s.listErr("list members", rows.Err())
}

// AppendMessage inserts the message and refreshes the conversation summary
// in one transaction.
func (s *Store) AppendMessage(ctx context.Context, m *store.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append message: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE conversations SET last_message = $2, updated_at = $3 WHERE id = $1`,
		m.ConversationID, m.Content, m.CreatedAt)
	if err != nil {
		return execErr("touch conversation", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	_, err = tx.Exec(ctx, `
        INSERT INTO messages (id, conversation_id, user_id, role, content, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ConversationID, m.UserID, m.Role, m.Content, m.CreatedAt,
	)
	if err != nil {
		return execErr("insert message", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append message: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]store.Message, error) {
	out := []store.Message{}
	rows, err := s.pool.Query(ctx, `
        SELECT id, conversation_id, user_id, role, content, created_at
        FROM messages WHERE conversation_id = $1 ORDER BY created_at, id`, conversationID)
	if err != nil {
		return out, s.listErr("list messages", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return []store.Message{}, s.listErr("scan message", err)
		}
		out = append(out, m)
	}
	return out, s.listErr("list messages", rows.Err())
}
