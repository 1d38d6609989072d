package admin

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/auth"
	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/utils"
)

// GET /admin/users
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.store.ListUsers(c.Request().Context())
	if err != nil {
		return utils.StoreError(c, err, "users")
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// DELETE /admin/users/:id
// The user's provider, if any, is left in place; delete it separately.
func (h *Handler) DeleteUser(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return utils.JSONError(c, http.StatusBadRequest, "user id required")
	}
	if id, _ := auth.IdentityFrom(c); id.UserID == userID {
		return utils.JSONError(c, http.StatusBadRequest, "cannot delete your own account")
	}
	if err := h.store.DeleteUser(c.Request().Context(), userID); err != nil {
		return utils.StoreError(c, err, "user")
	}
	h.logger.Info("user deleted", slog.String("user_id", userID))
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "user_id": userID})
}

type RoleRequest struct {
	Role string `json:"role"`
}

// PATCH /admin/users/:id/role
// Promoting to TRADER links a provider record when the user has none.
func (h *Handler) SetRole(c echo.Context) error {
	userID := c.Param("id")
	req := new(RoleRequest)
	if err := c.Bind(req); err != nil {
		return utils.JSONError(c, http.StatusBadRequest, "invalid request")
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	switch role {
	case store.RoleUser, store.RoleTrader, store.RoleAdmin:
	default:
		return utils.JSONError(c, http.StatusBadRequest, "role must be USER, TRADER or ADMIN")
	}

	ctx := c.Request().Context()
	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		return utils.StoreError(c, err, "user")
	}

	if role == store.RoleTrader {
		user.Role = store.RoleUser
		if _, err := auth.EnsureProvider(ctx, h.store, user, ""); err != nil {
			return utils.StoreError(c, err, "provider")
		}
	} else {
		user.Role = role
		if err := h.store.UpdateUser(ctx, user); err != nil {
			return utils.StoreError(c, err, "user")
		}
	}
	h.logger.Info("user role changed", slog.String("user_id", user.ID), slog.String("role", user.Role))
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}
