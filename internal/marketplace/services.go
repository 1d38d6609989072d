package marketplace

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/matching"
	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/utils"
)

// GET /providers
func (h *Handler) ListProviders(c echo.Context) error {
	providers, err := h.store.ListProviders(c.Request().Context())
	if err != nil {
		return utils.StoreError(c, err, "providers")
	}
	return c.JSON(http.StatusOK, echo.Map{"providers": providers})
}

// GET /providers/:id
func (h *Handler) GetProvider(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.store.GetProvider(ctx, c.Param("id"))
	if err != nil {
		return utils.StoreError(c, err, "provider")
	}
	listings, err := h.store.ListListings(ctx, store.ListingFilter{ProviderID: p.ID, Status: store.ListingListed})
	if err != nil {
		return utils.StoreError(c, err, "listings")
	}
	return c.JSON(http.StatusOK, echo.Map{"provider": p, "listings": listings})
}

// GET /listings?providerId=&tag=
// Only LISTED listings are public.
func (h *Handler) ListListings(c echo.Context) error {
	listings, err := h.store.ListListings(c.Request().Context(), store.ListingFilter{
		ProviderID: c.QueryParam("providerId"),
		Tag:        c.QueryParam("tag"),
		Status:     store.ListingListed,
	})
	if err != nil {
		return utils.StoreError(c, err, "listings")
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": listings})
}

// GET /listings/:id
func (h *Handler) GetListing(c echo.Context) error {
	l, err := h.store.GetListing(c.Request().Context(), c.Param("id"))
	if err != nil {
		return utils.StoreError(c, err, "listing")
	}
	if l.Status != store.ListingListed {
		return utils.JSONError(c, http.StatusNotFound, "listing not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"listing": l})
}

// GET /categories
func (h *Handler) Categories(c echo.Context) error {
	listings, err := h.store.ListListings(c.Request().Context(), store.ListingFilter{Status: store.ListingListed})
	if err != nil {
		return utils.StoreError(c, err, "categories")
	}
	var tags []string
	for _, l := range listings {
		tags = append(tags, l.TagSet()...)
	}
	slices.Sort(tags)
	tags = slices.Compact(tags)
	if tags == nil {
		tags = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": tags})
}

// GET /search?q=
func (h *Handler) Search(c echo.Context) error {
	ctx := c.Request().Context()
	q := c.QueryParam("q")

	providers, err := h.store.ListProviders(ctx)
	if err != nil {
		return utils.StoreError(c, err, "providers")
	}
	listings, err := h.store.ListListings(ctx, store.ListingFilter{Status: store.ListingListed})
	if err != nil {
		return utils.StoreError(c, err, "listings")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"query":     strings.TrimSpace(q),
		"providers": matching.Rank(q, providers, listings),
		"listings":  matching.MatchListings(q, listings),
	})
}

// GET /trader/listings
func (h *Handler) TraderListings(c echo.Context) error {
	id, ok, err := traderProvider(c)
	if !ok {
		return err
	}
	listings, err := h.store.ListListings(c.Request().Context(), store.ListingFilter{ProviderID: id.ProviderID})
	if err != nil {
		return utils.StoreError(c, err, "listings")
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": listings})
}

// POST /trader/listings
func (h *Handler) CreateListing(c echo.Context) error {
	id, ok, err := traderProvider(c)
	if !ok {
		return err
	}
	req := new(ListingRequest)
	if err := c.Bind(req); err != nil {
		return utils.JSONError(c, http.StatusBadRequest, "invalid request")
	}

	l := &store.Listing{ProviderID: id.ProviderID, Status: store.ListingListed}
	if msg := applyListing(l, req); msg != "" {
		return utils.JSONError(c, http.StatusBadRequest, msg)
	}
	if l.Title == "" {
		return utils.JSONError(c, http.StatusBadRequest, "title is required")
	}

	if err := h.store.CreateListing(c.Request().Context(), l); err != nil {
		return utils.StoreError(c, err, "listing")
	}
	return c.JSON(http.StatusCreated, echo.Map{"listing": l})
}

// PUT /trader/listings/:id
// A non-zero version in the body must match the stored one.
func (h *Handler) UpdateListing(c echo.Context) error {
	id, ok, err := traderProvider(c)
	if !ok {
		return err
	}
	req := new(ListingRequest)
	if err := c.Bind(req); err != nil {
		return utils.JSONError(c, http.StatusBadRequest, "invalid request")
	}

	ctx := c.Request().Context()
	l, err := h.store.GetListing(ctx, c.Param("id"))
	if err != nil {
		return utils.StoreError(c, err, "listing")
	}
	if !canManage(id, l.ProviderID) {
		return utils.JSONError(c, http.StatusForbidden, "not your listing")
	}
	if req.Version != 0 && req.Version != l.Version {
		return utils.StoreError(c, store.ErrConflict, "listing")
	}
	if msg := applyListing(l, req); msg != "" {
		return utils.JSONError(c, http.StatusBadRequest, msg)
	}
	if l.Title == "" {
		return utils.JSONError(c, http.StatusBadRequest, "title is required")
	}

	if err := h.store.UpdateListing(ctx, l); err != nil {
		return utils.StoreError(c, err, "listing")
	}
	return c.JSON(http.StatusOK, echo.Map{"listing": l})
}

// DELETE /trader/listings/:id
func (h *Handler) DeleteListing(c echo.Context) error {
	id, ok, err := traderProvider(c)
	if !ok {
		return err
	}
	ctx := c.Request().Context()
	l, err := h.store.GetListing(ctx, c.Param("id"))
	if err != nil {
		return utils.StoreError(c, err, "listing")
	}
	if !canManage(id, l.ProviderID) {
		return utils.JSONError(c, http.StatusForbidden, "not your listing")
	}
	if err := h.store.DeleteListing(ctx, l.ID); err != nil {
		return utils.StoreError(c, err, "listing")
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// applyListing copies the present fields of req onto l and returns a
// validation message, or "" when the result is valid.
func applyListing(l *store.Listing, req *ListingRequest) string {
	if req.Title != nil {
		l.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		l.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return "price must not be negative"
		}
		l.Price = *req.Price
	}
	if req.Tags != nil {
		l.Tags = normalizeTags(*req.Tags)
	}
	if req.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*req.Status))
		if status != store.ListingDraft && status != store.ListingListed {
			return "status must be DRAFT or LISTED"
		}
		l.Status = status
	}
	return ""
}

// normalizeTags trims each tag and drops empties and repeats, keeping order.
func normalizeTags(raw string) string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" && !slices.ContainsFunc(out, func(s string) bool { return strings.EqualFold(s, t) }) {
			out = append(out, t)
		}
	}
	return strings.Join(out, ",")
}
