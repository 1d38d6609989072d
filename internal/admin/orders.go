package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/utils"
)

// GET /admin/orders?status=
func (h *Handler) ListOrders(c echo.Context) error {
	orders, err := h.store.ListOrders(c.Request().Context(), store.OrderFilter{})
	if err != nil {
		return utils.StoreError(c, err, "orders")
	}
	if status := c.QueryParam("status"); status != "" {
		filtered := orders[:0]
		for _, o := range orders {
			if o.Status == status {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}
