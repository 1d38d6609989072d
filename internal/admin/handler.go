package admin

import (
	"log/slog"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

// Handler serves the /admin routes. Every route sits behind AdminGuard.
type Handler struct {
	store  store.Store
	logger *slog.Logger
}

func NewHandler(st store.Store, logger *slog.Logger) *Handler {
	return &Handler{store: st, logger: logger}
}
