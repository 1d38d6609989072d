package marketplace

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/auth"
	"github.com/sudo-init-do/tradeexchange/internal/messaging"
	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/utils"
)

// Handler serves providers, listings, search and the order lifecycle.
type Handler struct {
	store  store.Store
	chat   *messaging.Service
	logger *slog.Logger
}

func NewHandler(st store.Store, chat *messaging.Service, logger *slog.Logger) *Handler {
	return &Handler{store: st, chat: chat, logger: logger}
}

// traderProvider resolves the caller's provider id, writing a 403 when the
// caller has none.
func traderProvider(c echo.Context) (auth.Identity, bool, error) {
	id, _ := auth.IdentityFrom(c)
	if id.ProviderID == "" {
		return id, false, utils.JSONError(c, http.StatusForbidden, "no provider profile, become a provider first")
	}
	return id, true, nil
}

// canManage reports whether the caller may modify records of providerID.
func canManage(id auth.Identity, providerID string) bool {
	return id.Role == store.RoleAdmin || (id.ProviderID != "" && id.ProviderID == providerID)
}
