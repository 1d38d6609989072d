package marketplace

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/auth"
	"github.com/sudo-init-do/tradeexchange/internal/messaging"
	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/utils"
)

const defaultService = "Service request"

// POST /orders/request
func (h *Handler) RequestOrder(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	req := new(OrderRequestBody)
	if err := c.Bind(req); err != nil {
		return utils.JSONError(c, http.StatusBadRequest, "invalid request")
	}
	if req.ProviderID == "" {
		return utils.JSONError(c, http.StatusBadRequest, "providerId is required")
	}
	if req.Amount < 0 {
		return utils.JSONError(c, http.StatusBadRequest, "amount must not be negative")
	}

	ctx := c.Request().Context()
	provider, err := h.store.GetProvider(ctx, req.ProviderID)
	if err != nil {
		return utils.StoreError(c, err, "provider")
	}

	service := strings.TrimSpace(req.Title)
	amount := req.Amount
	if req.ListingID != "" {
		l, err := h.store.GetListing(ctx, req.ListingID)
		if err != nil {
			return utils.StoreError(c, err, "listing")
		}
		if l.ProviderID != provider.ID {
			return utils.JSONError(c, http.StatusBadRequest, "listing does not belong to provider")
		}
		if service == "" {
			service = l.Title
		}
		if amount == 0 {
			amount = l.Price
		}
	}
	if service == "" {
		service = defaultService
	}

	convID, err := h.orderConversation(ctx, id.UserID, provider, service, req.ConversationID)
	if err != nil {
		if errors.Is(err, errNotParticipant) {
			return utils.JSONError(c, http.StatusForbidden, "not a participant in this conversation")
		}
		return utils.StoreError(c, err, "conversation")
	}

	o := &store.Order{
		CustomerID:   id.UserID,
		CustomerName: id.Name,
		ProviderID:   provider.ID,
		ListingID:    req.ListingID,
		Service:      service,
		Status:       StatusDiscuss,
		Amount:       amount,
		Request: store.OrderRequest{
			Details:        strings.TrimSpace(req.Details),
			Date:           req.Date,
			Time:           req.Time,
			ConversationID: convID,
			Updates:        []store.OrderUpdate{},
		},
	}
	if err := h.store.CreateOrder(ctx, o); err != nil {
		return utils.StoreError(c, err, "order")
	}
	h.logger.Info("order requested", slog.String("order_id", o.ID), slog.String("provider_id", o.ProviderID))
	return c.JSON(http.StatusCreated, echo.Map{"order": o})
}

var errNotParticipant = errors.New("not a participant")

// orderConversation validates a caller-supplied conversation or ensures one
// between the customer and the provider's traders. Either way the
// conversation holds nobody outside that group.
func (h *Handler) orderConversation(ctx context.Context, customerID string, provider *store.Provider, service, requested string) (string, error) {
	traders, err := h.chat.TraderUsers(ctx, provider.ID)
	if err != nil {
		return "", err
	}
	participants := append([]string{customerID}, traders...)

	if requested != "" {
		err := h.chat.RequireScope(ctx, requested, customerID, participants)
		if errors.Is(err, messaging.ErrNotMember) {
			return "", errNotParticipant
		}
		if err != nil {
			return "", err
		}
		return requested, nil
	}

	conv, err := h.chat.EnsureConversation(ctx, "order", orderHint(service, provider), participants)
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

func orderHint(service string, provider *store.Provider) string {
	name := strings.TrimSpace(provider.Name)
	if name == "" {
		name = provider.ID
	}
	return "Order: " + service + " (" + name + ")"
}

// GET /orders/status?providerId=&listingId=
// A missing order is a normal answer, not an error.
func (h *Handler) OrderStatus(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	providerID := c.QueryParam("providerId")
	if providerID == "" {
		return utils.JSONError(c, http.StatusBadRequest, "providerId is required")
	}

	o, err := h.store.FindLatestOrder(c.Request().Context(), id.UserID, providerID, c.QueryParam("listingId"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusOK, echo.Map{"ok": true, "found": false, "status": "none", "ack": false})
	}
	if err != nil {
		return utils.StoreError(c, err, "order")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ok":             true,
		"found":          true,
		"id":             o.ID,
		"status":         o.Status,
		"ack":            o.Request.Ack,
		"conversationId": o.Request.ConversationID,
		"updatedAt":      o.UpdatedAt,
	})
}

// GET /orders/mine
func (h *Handler) MyOrders(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	orders, err := h.store.ListOrders(c.Request().Context(), store.OrderFilter{CustomerID: id.UserID})
	if err != nil {
		return utils.StoreError(c, err, "orders")
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

// GET /trader/orders
func (h *Handler) TraderOrders(c echo.Context) error {
	id, ok, err := traderProvider(c)
	if !ok {
		return err
	}
	orders, err := h.store.ListOrders(c.Request().Context(), store.OrderFilter{ProviderID: id.ProviderID})
	if err != nil {
		return utils.StoreError(c, err, "orders")
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

// POST /trader/orders/:id/action
func (h *Handler) OrderAction(c echo.Context) error {
	req := new(ActionRequest)
	if err := c.Bind(req); err != nil {
		return utils.JSONError(c, http.StatusBadRequest, "invalid request")
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	return h.transition(c, func(o *store.Order) (bool, error) {
		return Transition(o, action)
	})
}

// POST /trader/orders/:id/complete-with-details
func (h *Handler) CompleteWithDetails(c echo.Context) error {
	req := new(CompleteRequest)
	if err := c.Bind(req); err != nil {
		return utils.JSONError(c, http.StatusBadRequest, "invalid request")
	}
	if req.Amount < 0 {
		return utils.JSONError(c, http.StatusBadRequest, "amount must not be negative")
	}
	return h.transition(c, func(o *store.Order) (bool, error) {
		completed, err := Transition(o, "complete")
		if err != nil {
			return false, err
		}
		if req.Amount > 0 {
			o.Amount = req.Amount
		}
		if note := strings.TrimSpace(req.Note); note != "" {
			o.Request.Updates = append(o.Request.Updates, store.OrderUpdate{
				At:      time.Now().UTC(),
				From:    "trader",
				Message: note,
			})
		}
		return completed, nil
	})
}

// transition loads the order, checks ownership, applies fn and saves. A
// newly completed order bumps the provider's completed job count.
func (h *Handler) transition(c echo.Context, fn func(*store.Order) (bool, error)) error {
	id, _ := auth.IdentityFrom(c)
	ctx := c.Request().Context()

	o, err := h.store.GetOrder(ctx, c.Param("id"))
	if err != nil {
		return utils.StoreError(c, err, "order")
	}
	if !canManage(id, o.ProviderID) {
		return utils.JSONError(c, http.StatusForbidden, "not your order")
	}

	completed, err := fn(o)
	switch {
	case errors.Is(err, ErrInvalidAction):
		return utils.JSONError(c, http.StatusBadRequest, "Invalid action")
	case errors.Is(err, ErrInvalidTransition):
		return utils.JSONError(c, http.StatusConflict, "cannot apply action to an order in status "+o.Status)
	case err != nil:
		return utils.StoreError(c, err, "order")
	}

	if err := h.store.UpdateOrder(ctx, o); err != nil {
		return utils.StoreError(c, err, "order")
	}
	if completed {
		h.bumpJobs(ctx, o.ProviderID)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "order": o})
}

func (h *Handler) bumpJobs(ctx context.Context, providerID string) {
	p, err := h.store.GetProvider(ctx, providerID)
	if err == nil {
		p.CompletedJobs++
		err = h.store.UpdateProvider(ctx, p)
	}
	if err != nil {
		h.logger.Warn("could not update completed jobs", slog.String("provider_id", providerID), slog.Any("error", err))
	}
}
