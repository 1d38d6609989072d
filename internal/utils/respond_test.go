package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

func TestStoreError(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{store.ErrNotFound, http.StatusNotFound, "listing not found"},
		{fmt.Errorf("wrapped: %w", store.ErrConflict), http.StatusConflict, "listing was modified concurrently, reload and retry"},
		{store.ErrDuplicate, http.StatusConflict, "listing already exists"},
		{errors.New("dial tcp 10.0.0.1:5432: connection refused"), http.StatusInternalServerError, "internal error"},
	}
	e := echo.New()
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		_ = StoreError(c, tt.err, "listing")

		if rec.Code != tt.code {
			t.Errorf("%v: status %d, want %d", tt.err, rec.Code, tt.code)
		}
		var body map[string]string
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		if body["error"] != tt.msg {
			t.Errorf("%v: body %q, want %q", tt.err, body["error"], tt.msg)
		}
	}
}
