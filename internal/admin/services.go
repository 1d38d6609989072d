package admin

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/utils"
)

// DELETE /admin/providers/:id
// Listings, reviews and orders of the provider go with it.
func (h *Handler) DeleteProvider(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return utils.JSONError(c, http.StatusBadRequest, "provider id required")
	}
	if err := h.store.DeleteProvider(c.Request().Context(), id); err != nil {
		return utils.StoreError(c, err, "provider")
	}
	h.logger.Info("provider deleted", slog.String("provider_id", id))
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "provider_id": id})
}

// DELETE /admin/listings/:id
func (h *Handler) DeleteListing(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return utils.JSONError(c, http.StatusBadRequest, "listing id required")
	}
	if err := h.store.DeleteListing(c.Request().Context(), id); err != nil {
		return utils.StoreError(c, err, "listing")
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "listing_id": id})
}
