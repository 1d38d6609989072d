package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ===== Signin =====
func (h *Handler) Signin(c echo.Context) error {
	req := new(LoginRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	user, err := h.store.GetUserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Error("signin lookup failed", slog.Any("error", err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	return h.respondWithToken(c, http.StatusOK, user, nil)
}

// ===== Signout =====
func (h *Handler) Signout(c echo.Context) error {
	h.setCookie(c, "", 0)
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
