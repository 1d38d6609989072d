package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

var (
	ErrNotMember      = errors.New("not a member of this conversation")
	ErrEmptyMessage   = errors.New("message content is required")
	ErrNoParticipants = errors.New("conversation needs at least one participant")
)

const defaultTitle = "Conversation"

// Service owns conversations and their append-only message logs.
type Service struct {
	store     store.Store
	responder Responder
	hub       *Hub
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the store with an optional responder (nil disables the
// auto-reply) and an optional websocket hub.
func NewService(st store.Store, responder Responder, hub *Hub, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		responder: responder,
		hub:       hub,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// EnsureConversation returns a conversation titled hint whose members are
// all among participants, creating one when there is none. A same-titled
// conversation that includes anyone else is never reused. All participants
// end up as members either way.
func (s *Service) EnsureConversation(ctx context.Context, kind, hint string, participants []string) (*store.Conversation, error) {
	members := make([]string, 0, len(participants))
	for _, p := range participants {
		if p != "" && !slices.Contains(members, p) {
			members = append(members, p)
		}
	}
	if len(members) == 0 {
		return nil, ErrNoParticipants
	}
	title := strings.TrimSpace(hint)
	if title == "" {
		title = defaultTitle
	}
	if kind == "" {
		kind = "chat"
	}

	candidates, err := s.store.FindConversations(ctx, title, members[0])
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	var conv *store.Conversation
	for i := range candidates {
		ok, err := s.membersWithin(ctx, candidates[i].ID, members)
		if err != nil {
			return nil, err
		}
		if ok {
			conv = &candidates[i]
			break
		}
	}
	if conv == nil {
		conv = &store.Conversation{Kind: kind, Title: title}
		if err := s.store.CreateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
	}

	for _, m := range members {
		if err := s.store.AddMember(ctx, conv.ID, m); err != nil {
			return nil, fmt.Errorf("add member: %w", err)
		}
	}
	return conv, nil
}

// RequireScope fails with ErrNotMember unless memberID belongs to the
// conversation and every member of it is in allowed.
func (s *Service) RequireScope(ctx context.Context, conversationID, memberID string, allowed []string) error {
	if err := s.requireMember(ctx, conversationID, memberID); err != nil {
		return err
	}
	ok, err := s.membersWithin(ctx, conversationID, allowed)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

func (s *Service) membersWithin(ctx context.Context, conversationID string, allowed []string) (bool, error) {
	current, err := s.store.ListMembers(ctx, conversationID)
	if err != nil {
		return false, fmt.Errorf("list members: %w", err)
	}
	if len(current) == 0 {
		return false, nil
	}
	for _, m := range current {
		if !slices.Contains(allowed, m) {
			return false, nil
		}
	}
	return true, nil
}

// Conversation returns the conversation if memberID belongs to it.
func (s *Service) Conversation(ctx context.Context, conversationID, memberID string) (*store.Conversation, error) {
	if err := s.requireMember(ctx, conversationID, memberID); err != nil {
		return nil, err
	}
	return s.store.GetConversation(ctx, conversationID)
}

func (s *Service) Conversations(ctx context.Context, memberID string) ([]store.Conversation, error) {
	return s.store.ListConversations(ctx, memberID)
}

func (s *Service) ListMessages(ctx context.Context, conversationID, memberID string) ([]store.Message, error) {
	if err := s.requireMember(ctx, conversationID, memberID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID)
}

// PostMessage appends authorID's message, records it on any order the author
// placed through this conversation, and appends the responder's reply. The
// reply is nil when there is no responder or it fails.
func (s *Service) PostMessage(ctx context.Context, conversationID, authorID, content string) (*store.Message, *store.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, ErrEmptyMessage
	}
	if err := s.requireMember(ctx, conversationID, authorID); err != nil {
		return nil, nil, err
	}

	author := authorID
	msg := &store.Message{
		ConversationID: conversationID,
		UserID:         &author,
		Role:           store.MessageRoleUser,
		Content:        content,
		CreatedAt:      s.now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, nil, fmt.Errorf("append message: %w", err)
	}
	s.publish(msg)
	s.recordFollowUp(ctx, msg)

	reply := s.reply(ctx, msg)
	return msg, reply, nil
}

func (s *Service) reply(ctx context.Context, msg *store.Message) *store.Message {
	if s.responder == nil {
		return nil
	}
	history, err := s.store.ListMessages(ctx, msg.ConversationID)
	if err != nil || len(history) == 0 {
		history = []store.Message{*msg}
	}
	text, err := s.responder.Reply(ctx, history)
	if err != nil {
		s.logger.Warn("responder failed", slog.String("conversation_id", msg.ConversationID), slog.Any("error", err))
		return nil
	}
	if text == "" {
		return nil
	}

	at := s.now()
	if !at.After(msg.CreatedAt) {
		at = msg.CreatedAt.Add(time.Microsecond)
	}
	reply := &store.Message{
		ConversationID: msg.ConversationID,
		Role:           store.MessageRoleAssistant,
		Content:        text,
		CreatedAt:      at,
	}
	if err := s.store.AppendMessage(ctx, reply); err != nil {
		s.logger.Warn("storing reply failed", slog.String("conversation_id", msg.ConversationID), slog.Any("error", err))
		return nil
	}
	s.publish(reply)
	return reply
}

// recordFollowUp appends the message to the updates log of every order in
// this conversation whose customer wrote it. Failures are logged only; the
// message itself is already stored.
func (s *Service) recordFollowUp(ctx context.Context, msg *store.Message) {
	orders, err := s.store.ListOrders(ctx, store.OrderFilter{ConversationID: msg.ConversationID})
	if err != nil {
		s.logger.Warn("order lookup for follow-up failed", slog.Any("error", err))
		return
	}
	for _, o := range orders {
		if o.CustomerID != *msg.UserID {
			continue
		}
		if err := s.appendUpdate(ctx, o.ID, msg); err != nil {
			s.logger.Warn("order follow-up failed", slog.String("order_id", o.ID), slog.Any("error", err))
		}
	}
}

func (s *Service) appendUpdate(ctx context.Context, orderID string, msg *store.Message) error {
	const attempts = 3
	for i := 0; ; i++ {
		o, err := s.store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		o.Request.Updates = append(o.Request.Updates, store.OrderUpdate{
			At:      msg.CreatedAt,
			From:    "customer",
			Message: msg.Content,
		})
		o.Request.LastMessage = msg.Content
		err = s.store.UpdateOrder(ctx, o)
		if err == nil || !errors.Is(err, store.ErrConflict) || i == attempts-1 {
			return err
		}
	}
}

func (s *Service) requireMember(ctx context.Context, conversationID, userID string) error {
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return err
	}
	ok, err := s.store.IsMember(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

func (s *Service) publish(m *store.Message) {
	if s.hub != nil {
		s.hub.BroadcastNewMessage(m.ConversationID, m)
	}
}

// TraderUsers returns the ids of users linked to providerID.
func (s *Service) TraderUsers(ctx context.Context, providerID string) ([]string, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, u := range users {
		if u.ProviderID == providerID {
			out = append(out, u.ID)
		}
	}
	return out, nil
}
