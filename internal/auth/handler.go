package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

type CookieConfig struct {
	Name   string
	Secure bool
}

type Handler struct {
	store  store.Store
	tokens *TokenService
	cookie CookieConfig
	cost   int
	logger *slog.Logger

	bootstrapSecret string
}

type Option func(*Handler)

// WithPasswordCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithPasswordCost(cost int) Option {
	return func(h *Handler) { h.cost = cost }
}

// WithBootstrapSecret enables POST /admin/bootstrap.
func WithBootstrapSecret(secret string) Option {
	return func(h *Handler) { h.bootstrapSecret = secret }
}

func NewHandler(st store.Store, tokens *TokenService, cookie CookieConfig, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{store: st, tokens: tokens, cookie: cookie, cost: bcrypt.DefaultCost, logger: logger}
	for _, o := range opts {
		o(h)
	}
	return h
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type AuthResponse struct {
	Token    string          `json:"token"`
	User     *store.User     `json:"user"`
	Provider *store.Provider `json:"provider,omitempty"`
}

// ===== Signup =====
func (h *Handler) Signup(c echo.Context) error {
	req := new(SignupRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	role := strings.ToUpper(strings.TrimSpace(req.Role))
	switch role {
	case "":
		role = store.RoleUser
	case store.RoleUser, store.RoleTrader:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be USER or TRADER"})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}

	ctx := c.Request().Context()
	user := &store.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
		Role:         store.RoleUser,
	}
	if err := h.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		h.logger.Error("signup failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create account"})
	}

	var provider *store.Provider
	if role == store.RoleTrader {
		provider, err = EnsureProvider(ctx, h.store, user, name)
		if err != nil {
			h.logger.Error("provider creation failed", slog.String("user_id", user.ID), slog.Any("error", err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create provider"})
		}
	}

	return h.respondWithToken(c, http.StatusCreated, user, provider)
}

// EnsureProvider links u to a provider record, creating one with the default
// rating when u has none, and makes u a TRADER. Admins keep their role.
func EnsureProvider(ctx context.Context, st store.Store, u *store.User, name string) (*store.Provider, error) {
	if u.ProviderID != "" {
		p, err := st.GetProvider(ctx, u.ProviderID)
		if err == nil {
			if u.Role != store.RoleTrader && u.Role != store.RoleAdmin {
				u.Role = store.RoleTrader
				if err := st.UpdateUser(ctx, u); err != nil {
					return nil, err
				}
			}
			return p, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	if strings.TrimSpace(name) == "" {
		name = u.Name
	}
	p := &store.Provider{
		Name:       name,
		Role:       "PROVIDER",
		Rating:     5.0,
		Email:      u.Email,
		Attributes: map[string]any{},
	}
	if err := st.CreateProvider(ctx, p); err != nil {
		return nil, err
	}

	u.ProviderID = p.ID
	if u.Role != store.RoleAdmin {
		u.Role = store.RoleTrader
	}
	if err := st.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *Handler) respondWithToken(c echo.Context, status int, u *store.User, p *store.Provider) error {
	token, err := h.tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}
	h.setCookie(c, token, h.tokens.TTL())
	return c.JSON(status, AuthResponse{Token: token, User: u, Provider: p})
}

func (h *Handler) setCookie(c echo.Context, value string, maxAge time.Duration) {
	ck := &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge / time.Second),
	}
	if maxAge <= 0 {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	}
	c.SetCookie(ck)
}
