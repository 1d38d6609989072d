package messaging

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/auth"
	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/utils"
)

type Handler struct {
	svc   *Service
	store store.Store
	hub   *Hub
}

func NewHandler(svc *Service, st store.Store, hub *Hub) *Handler {
	return &Handler{svc: svc, store: st, hub: hub}
}

func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotMember):
		return utils.JSONError(c, http.StatusForbidden, "not a participant in this conversation")
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrNoParticipants):
		return utils.JSONError(c, http.StatusBadRequest, err.Error())
	}
	return utils.StoreError(c, err, "conversation")
}

// GET /conversations
func (h *Handler) ListConversations(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	convs, err := h.svc.Conversations(c.Request().Context(), id.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"conversations": convs})
}

type CreateConversationRequest struct {
	Kind       string `json:"kind"`
	Title      string `json:"title"`
	ProviderID string `json:"providerId"`
}

// POST /conversations
// Returns the existing conversation when the caller already has one with the
// same title.
func (h *Handler) CreateConversation(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	req := new(CreateConversationRequest)
	if err := c.Bind(req); err != nil {
		return utils.JSONError(c, http.StatusBadRequest, "invalid request")
	}

	ctx := c.Request().Context()
	participants := []string{id.UserID}
	title := strings.TrimSpace(req.Title)
	if req.ProviderID != "" {
		p, err := h.store.GetProvider(ctx, req.ProviderID)
		if err != nil {
			return utils.StoreError(c, err, "provider")
		}
		traders, err := h.svc.TraderUsers(ctx, p.ID)
		if err != nil {
			return utils.StoreError(c, err, "provider")
		}
		participants = append(participants, traders...)
		if title == "" {
			title = "Chat with " + p.Name
		}
	}

	conv, err := h.svc.EnsureConversation(ctx, req.Kind, title, participants)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"conversation": conv})
}

// GET /conversations/:id
func (h *Handler) GetConversation(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	conv, err := h.svc.Conversation(c.Request().Context(), c.Param("id"), id.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"conversation": conv})
}

// GET /conversations/:id/messages
func (h *Handler) ListMessages(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	msgs, err := h.svc.ListMessages(c.Request().Context(), c.Param("id"), id.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// POST /conversations/:id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	var body struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&body); err != nil {
		return utils.JSONError(c, http.StatusBadRequest, "invalid payload")
	}

	msg, reply, err := h.svc.PostMessage(c.Request().Context(), c.Param("id"), id.UserID, body.Content)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": msg, "reply": reply})
}

// GET /conversations/:id/ws
func (h *Handler) ConversationWS(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	convID := c.Param("id")
	if err := h.svc.requireMember(c.Request().Context(), convID, id.UserID); err != nil {
		return h.fail(c, err)
	}
	return h.hub.serve(c.Response(), c.Request(), convID, id.UserID)
}
