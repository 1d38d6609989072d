package user

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/utils"
)

// GET /users/:id
func (h *Handler) GetPublicProfile(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return utils.JSONError(c, http.StatusBadRequest, "missing user id")
	}
	u, err := h.users.GetUser(c.Request().Context(), userID)
	if err != nil {
		return utils.StoreError(c, err, "user")
	}
	return c.JSON(http.StatusOK, publicProfile(u))
}
