package user

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/auth"
	"github.com/sudo-init-do/tradeexchange/internal/utils"
)

type UpdateProfileRequest struct {
	Name string `json:"name"`
}

// PATCH /user/profile
func (h *Handler) UpdateProfile(c echo.Context) error {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		return utils.JSONError(c, http.StatusUnauthorized, "invalid or missing token")
	}

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return utils.JSONError(c, http.StatusBadRequest, "invalid request")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return utils.JSONError(c, http.StatusBadRequest, "name is required")
	}

	ctx := c.Request().Context()
	u, err := h.users.GetUser(ctx, id.UserID)
	if err != nil {
		return utils.StoreError(c, err, "user")
	}
	u.Name = name
	if err := h.users.UpdateUser(ctx, u); err != nil {
		return utils.StoreError(c, err, "user")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "profile updated successfully", "user": u})
}
