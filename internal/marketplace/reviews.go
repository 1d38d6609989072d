package marketplace

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/auth"
	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/utils"
)

// POST /orders/:id/review
// Only the customer of a completed order may review it, once.
func (h *Handler) CreateReview(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	req := new(ReviewRequest)
	if err := c.Bind(req); err != nil {
		return utils.JSONError(c, http.StatusBadRequest, "invalid request")
	}

	ctx := c.Request().Context()
	o, err := h.store.GetOrder(ctx, c.Param("id"))
	if err != nil {
		return utils.StoreError(c, err, "order")
	}
	if o.CustomerID != id.UserID {
		return utils.JSONError(c, http.StatusForbidden, "only the customer can review this order")
	}
	if o.Status != StatusComplete {
		return utils.JSONError(c, http.StatusConflict, "order is not complete")
	}

	existing, err := h.store.ListReviews(ctx, o.ProviderID)
	if err != nil {
		return utils.StoreError(c, err, "reviews")
	}
	for _, r := range existing {
		if r.OrderID == o.ID {
			return utils.JSONError(c, http.StatusConflict, "order already reviewed")
		}
	}

	review := &store.Review{
		ProviderID: o.ProviderID,
		OrderID:    o.ID,
		AuthorID:   id.UserID,
		Rating:     clampRating(req.Rating),
		Text:       strings.TrimSpace(req.Text),
	}
	if err := h.store.CreateReview(ctx, review); err != nil {
		return utils.StoreError(c, err, "review")
	}

	rating := averageRating(append(existing, *review))
	p, err := h.store.GetProvider(ctx, o.ProviderID)
	if err == nil {
		p.Rating = rating
		err = h.store.UpdateProvider(ctx, p)
	}
	if err != nil {
		return utils.StoreError(c, err, "provider")
	}
	return c.JSON(http.StatusCreated, echo.Map{"review": review, "providerRating": rating})
}

// GET /providers/:id/reviews
func (h *Handler) ProviderReviews(c echo.Context) error {
	reviews, err := h.store.ListReviews(c.Request().Context(), c.Param("id"))
	if err != nil {
		return utils.StoreError(c, err, "reviews")
	}
	return c.JSON(http.StatusOK, echo.Map{"reviews": reviews})
}

func clampRating(r int) int {
	return max(1, min(5, r))
}

func averageRating(reviews []store.Review) float64 {
	if len(reviews) == 0 {
		return 5.0
	}
	var sum int
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}
