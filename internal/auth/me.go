package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

// Me returns the current user as stored, with the linked provider if any.
func (h *Handler) Me(c echo.Context) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx := c.Request().Context()
	user, err := h.store.GetUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		// storage is unavailable; answer from the verified token
		return c.JSON(http.StatusOK, echo.Map{"user": id})
	}

	resp := echo.Map{"user": user}
	if user.ProviderID != "" {
		if p, err := h.store.GetProvider(ctx, user.ProviderID); err == nil {
			resp["provider"] = p
		}
	}
	return c.JSON(http.StatusOK, resp)
}

type BecomeProviderRequest struct {
	Name string `json:"name"`
}

// POST /become-provider
func (h *Handler) BecomeProvider(c echo.Context) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	req := new(BecomeProviderRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	ctx := c.Request().Context()
	user, err := h.store.GetUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}

	provider, err := EnsureProvider(ctx, h.store, user, req.Name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create provider"})
	}
	return h.respondWithToken(c, http.StatusOK, user, provider)
}
