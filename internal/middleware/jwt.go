package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/auth"
	"github.com/sudo-init-do/tradeexchange/internal/store"
)

type JWTConfig struct {
	Tokens     *auth.TokenService
	Users      store.UserRepository
	CookieName string
	AllowQuery bool
	Logger     *slog.Logger
}

// JWT authenticates the request and attaches the caller's identity. The role,
// name and provider link come from the user record, not the token, whenever
// the store can answer.
func JWT(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := auth.ExtractToken(c.Request(), cfg.CookieName, cfg.AllowQuery)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing token"})
			}

			claims, err := cfg.Tokens.Verify(raw)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, auth.ErrExpired) {
					msg = "token expired"
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
			}

			id := auth.Identity{
				UserID: claims.Subject,
				Email:  claims.Email,
				Role:   claims.Role,
			}
			u, err := cfg.Users.GetUser(c.Request().Context(), claims.Subject)
			switch {
			case err == nil:
				id.Email = u.Email
				id.Name = u.Name
				id.Role = u.Role
				id.ProviderID = u.ProviderID
			case errors.Is(err, store.ErrNotFound):
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account no longer exists"})
			default:
				if cfg.Logger != nil {
					cfg.Logger.Warn("identity lookup failed, using token claims",
						slog.String("user_id", claims.Subject), slog.Any("error", err))
				}
			}

			auth.SetIdentity(c, id)
			return next(c)
		}
	}
}
