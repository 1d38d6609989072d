package marketplace

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/utils"
)

// GET /trader/profile
func (h *Handler) TraderProfile(c echo.Context) error {
	id, ok, err := traderProvider(c)
	if !ok {
		return err
	}
	p, err := h.store.GetProvider(c.Request().Context(), id.ProviderID)
	if err != nil {
		return utils.StoreError(c, err, "provider")
	}
	return c.JSON(http.StatusOK, echo.Map{"provider": p})
}

// POST|PUT /trader/profile
// Fields missing from the body keep their stored value; attributes merge
// key by key and a null attribute value removes the key.
func (h *Handler) UpsertTraderProfile(c echo.Context) error {
	id, ok, err := traderProvider(c)
	if !ok {
		return err
	}
	req := new(ProfileRequest)
	if err := c.Bind(req); err != nil {
		return utils.JSONError(c, http.StatusBadRequest, "invalid request")
	}
	if req.HourlyRate != nil && *req.HourlyRate < 0 {
		return utils.JSONError(c, http.StatusBadRequest, "hourlyRate must not be negative")
	}

	ctx := c.Request().Context()
	p, err := h.store.GetProvider(ctx, id.ProviderID)
	if err != nil {
		return utils.StoreError(c, err, "provider")
	}
	applyProfile(p, req)
	if err := h.store.UpdateProvider(ctx, p); err != nil {
		return utils.StoreError(c, err, "provider")
	}
	return c.JSON(http.StatusOK, echo.Map{"provider": p})
}

func applyProfile(p *store.Provider, req *ProfileRequest) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		p.Name = strings.TrimSpace(*req.Name)
	}
	setString(&p.Bio, req.Bio)
	setString(&p.Location, req.Location)
	setString(&p.Email, req.Email)
	setString(&p.Phone, req.Phone)
	setString(&p.Website, req.Website)
	setString(&p.Availability, req.Availability)
	if req.HourlyRate != nil {
		p.HourlyRate = *req.HourlyRate
	}
	if len(req.Attributes) > 0 {
		if p.Attributes == nil {
			p.Attributes = map[string]any{}
		}
		for k, v := range req.Attributes {
			if v == nil {
				delete(p.Attributes, k)
				continue
			}
			p.Attributes[k] = v
		}
	}
}
