package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/utils"
)

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	users, err := h.store.ListUsers(ctx)
	if err != nil {
		return utils.StoreError(c, err, "users")
	}
	providers, err := h.store.ListProviders(ctx)
	if err != nil {
		return utils.StoreError(c, err, "providers")
	}
	listings, err := h.store.ListListings(ctx, store.ListingFilter{})
	if err != nil {
		return utils.StoreError(c, err, "listings")
	}
	orders, err := h.store.ListOrders(ctx, store.OrderFilter{})
	if err != nil {
		return utils.StoreError(c, err, "orders")
	}
	interactions, err := h.store.ListInteractions(ctx, store.InteractionFilter{})
	if err != nil {
		return utils.StoreError(c, err, "interactions")
	}

	var revenue float64
	for _, in := range interactions {
		revenue += in.Amount
	}
	byStatus := map[string]int{}
	for _, o := range orders {
		byStatus[o.Status]++
	}

	return c.JSON(http.StatusOK, echo.Map{
		"users":          len(users),
		"providers":      len(providers),
		"listings":       len(listings),
		"orders":         len(orders),
		"ordersByStatus": byStatus,
		"interactions":   len(interactions),
		"revenue":        revenue,
	})
}
