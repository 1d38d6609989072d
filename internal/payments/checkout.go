package payments

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/auth"
	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/utils"
)

// maxCheckoutAmount caps a single charge in major currency units. It keeps the
// conversion to cents well inside int64.
const maxCheckoutAmount = 1_000_000

type Handler struct {
	store    store.Store
	gateway  Gateway
	currency string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewHandler builds the checkout handler. timeout bounds each gateway call on
// top of the request context.
func NewHandler(st store.Store, gw Gateway, currency string, timeout time.Duration, logger *slog.Logger) *Handler {
	return &Handler{store: st, gateway: gw, currency: currency, timeout: timeout, logger: logger}
}

type CheckoutRequest struct {
	ProviderID string  `json:"providerId"`
	ListingID  string  `json:"listingId"`
	Amount     float64 `json:"amount"`
	Note       string  `json:"note"`
}

// POST /checkout
// Every successful call appends a new interaction; nothing is overwritten.
func (h *Handler) Checkout(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	req := new(CheckoutRequest)
	if err := c.Bind(req); err != nil {
		return utils.JSONError(c, http.StatusBadRequest, "invalid request")
	}
	if req.ProviderID == "" {
		return utils.JSONError(c, http.StatusBadRequest, "providerId is required")
	}

	ctx := c.Request().Context()
	provider, err := h.store.GetProvider(ctx, req.ProviderID)
	if err != nil {
		return utils.StoreError(c, err, "provider")
	}

	amount := req.Amount
	description := "Trade Exchange: " + provider.Name
	if req.ListingID != "" {
		l, err := h.store.GetListing(ctx, req.ListingID)
		if err != nil {
			return utils.StoreError(c, err, "listing")
		}
		if l.ProviderID != provider.ID {
			return utils.JSONError(c, http.StatusBadRequest, "listing does not belong to provider")
		}
		if amount == 0 {
			amount = l.Price
		}
		description += " / " + l.Title
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return utils.JSONError(c, http.StatusBadRequest, "amount must be positive")
	}
	if amount > maxCheckoutAmount {
		return utils.JSONError(c, http.StatusBadRequest, "amount exceeds the checkout limit")
	}

	charge, err := h.charge(ctx, ChargeRequest{
		AmountCents:    int64(math.Round(amount * 100)),
		Currency:       h.currency,
		CustomerID:     id.UserID,
		Description:    description,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		h.logger.Warn("checkout failed",
			slog.String("user_id", id.UserID),
			slog.String("provider_id", provider.ID),
			slog.Any("error", err),
		)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "payment failed, please retry", "status": "failed"})
	}

	in := &store.Interaction{
		UserID:     id.UserID,
		ProviderID: provider.ID,
		ListingID:  req.ListingID,
		Note:       strings.TrimSpace(req.Note),
		Amount:     amount,
		Reference:  charge.ID,
	}
	if err := h.store.CreateInteraction(ctx, in); err != nil {
		// the charge went through; keep the reference in the logs for reconciliation
		h.logger.Error("interaction not recorded after charge",
			slog.String("charge_id", charge.ID), slog.Any("error", err))
		return utils.StoreError(c, err, "interaction")
	}
	return c.JSON(http.StatusCreated, echo.Map{"ok": true, "status": "succeeded", "interaction": in})
}

func (h *Handler) charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	ch, err := h.gateway.Charge(ctx, req)
	if err != nil && !errors.Is(err, ErrPaymentFailed) {
		err = errors.Join(ErrPaymentFailed, err)
	}
	return ch, err
}

type HistoryItem struct {
	store.Interaction
	ProviderName string `json:"providerName"`
}

// GET /user/history
func (h *Handler) History(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	ctx := c.Request().Context()

	interactions, err := h.store.ListInteractions(ctx, store.InteractionFilter{UserID: id.UserID})
	if err != nil {
		return utils.StoreError(c, err, "history")
	}
	names := h.providerNames(ctx)

	items := make([]HistoryItem, 0, len(interactions))
	for _, in := range interactions {
		items = append(items, HistoryItem{Interaction: in, ProviderName: names[in.ProviderID]})
	}
	return c.JSON(http.StatusOK, echo.Map{"history": items})
}

type Favorite struct {
	ProviderID   string    `json:"providerId"`
	ProviderName string    `json:"providerName"`
	Count        int       `json:"count"`
	Total        float64   `json:"total"`
	LastAt       time.Time `json:"lastAt"`
}

// GET /user/favorites
// Providers the caller has paid, most frequent first.
func (h *Handler) Favorites(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	ctx := c.Request().Context()

	interactions, err := h.store.ListInteractions(ctx, store.InteractionFilter{UserID: id.UserID})
	if err != nil {
		return utils.StoreError(c, err, "favorites")
	}
	names := h.providerNames(ctx)

	byProvider := map[string]*Favorite{}
	var order []string
	for _, in := range interactions {
		f, ok := byProvider[in.ProviderID]
		if !ok {
			f = &Favorite{ProviderID: in.ProviderID, ProviderName: names[in.ProviderID]}
			byProvider[in.ProviderID] = f
			order = append(order, in.ProviderID)
		}
		f.Count++
		f.Total += in.Amount
		if in.At.After(f.LastAt) {
			f.LastAt = in.At
		}
	}

	out := make([]Favorite, 0, len(order))
	for _, pid := range order {
		out = append(out, *byProvider[pid])
	}
	slices.SortStableFunc(out, func(a, b Favorite) int { return b.Count - a.Count })
	return c.JSON(http.StatusOK, echo.Map{"favorites": out})
}

// GET /trader/summary
func (h *Handler) TraderSummary(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	if id.ProviderID == "" {
		return utils.JSONError(c, http.StatusForbidden, "no provider profile, become a provider first")
	}
	ctx := c.Request().Context()

	p, err := h.store.GetProvider(ctx, id.ProviderID)
	if err != nil {
		return utils.StoreError(c, err, "provider")
	}
	interactions, err := h.store.ListInteractions(ctx, store.InteractionFilter{ProviderID: p.ID})
	if err != nil {
		return utils.StoreError(c, err, "interactions")
	}
	orders, err := h.store.ListOrders(ctx, store.OrderFilter{ProviderID: p.ID})
	if err != nil {
		return utils.StoreError(c, err, "orders")
	}

	var earnings float64
	clients := map[string]bool{}
	for _, in := range interactions {
		earnings += in.Amount
		clients[in.UserID] = true
	}
	byStatus := map[string]int{}
	for _, o := range orders {
		byStatus[o.Status]++
	}

	return c.JSON(http.StatusOK, echo.Map{
		"providerId":    p.ID,
		"rating":        p.Rating,
		"completedJobs": p.CompletedJobs,
		"earnings":      math.Round(earnings*100) / 100,
		"interactions":  len(interactions),
		"clients":       len(clients),
		"orders":        byStatus,
	})
}

func (h *Handler) providerNames(ctx context.Context) map[string]string {
	names := map[string]string{}
	providers, err := h.store.ListProviders(ctx)
	if err != nil {
		h.logger.Warn("provider names unavailable", slog.Any("error", err))
		return names
	}
	for _, p := range providers {
		names[p.ID] = p.Name
	}
	return names
}
