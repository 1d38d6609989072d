package utils

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

// JSONError writes the standard {"error": msg} body.
func JSONError(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": msg})
}

// StoreError maps a store error to its HTTP status. Unclassified errors are
// logged and reported as a generic 500 so internal detail never leaks.
func StoreError(c echo.Context, err error, what string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return JSONError(c, http.StatusNotFound, what+" not found")
	case errors.Is(err, store.ErrConflict):
		return JSONError(c, http.StatusConflict, what+" was modified concurrently, reload and retry")
	case errors.Is(err, store.ErrDuplicate):
		return JSONError(c, http.StatusConflict, what+" already exists")
	}
	slog.ErrorContext(c.Request().Context(), "storage error",
		slog.String("method", c.Request().Method),
		slog.String("path", c.Path()),
		slog.Any("error", err),
	)
	return JSONError(c, http.StatusInternalServerError, "internal error")
}
