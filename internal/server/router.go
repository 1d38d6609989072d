// Package server assembles the echo instance: middleware, handlers and routes.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/sudo-init-do/tradeexchange/internal/admin"
	"github.com/sudo-init-do/tradeexchange/internal/auth"
	"github.com/sudo-init-do/tradeexchange/internal/config"
	"github.com/sudo-init-do/tradeexchange/internal/marketplace"
	"github.com/sudo-init-do/tradeexchange/internal/messaging"
	mware "github.com/sudo-init-do/tradeexchange/internal/middleware"
	"github.com/sudo-init-do/tradeexchange/internal/payments"
	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/user"
)

type Deps struct {
	Config    *config.Config
	Store     store.Store
	Tokens    *auth.TokenService
	Logger    *slog.Logger
	Responder messaging.Responder
	Gateway   payments.Gateway

	// PasswordCost defaults to bcrypt.DefaultCost.
	PasswordCost int
	// AuthRateLimit is requests per second per client on the auth routes.
	// Zero means 20.
	AuthRateLimit float64
}

// New builds the HTTP handler tree. The returned echo instance is not started.
func New(d Deps) *echo.Echo {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cost := d.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	gateway := d.Gateway
	if gateway == nil {
		gateway = payments.OfflineGateway{}
	}
	rateLimit := d.AuthRateLimit
	if rateLimit == 0 {
		rateLimit = 20
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	hub := messaging.NewHub(cfg.CORSOrigins)
	chat := messaging.NewService(d.Store, d.Responder, hub, logger)

	authH := auth.NewHandler(d.Store, d.Tokens,
		auth.CookieConfig{Name: cfg.CookieName, Secure: cfg.CookieSecure},
		logger,
		auth.WithPasswordCost(cost),
		auth.WithBootstrapSecret(cfg.AdminBootstrapSecret),
	)
	market := marketplace.NewHandler(d.Store, chat, logger)
	msgH := messaging.NewHandler(chat, d.Store, hub)
	pay := payments.NewHandler(d.Store, gateway, cfg.Payments.Currency, cfg.Payments.Timeout, logger)
	users := user.NewHandler(d.Store)
	adm := admin.NewHandler(d.Store, logger)

	jwt := mware.JWT(mware.JWTConfig{
		Tokens:     d.Tokens,
		Users:      d.Store,
		CookieName: cfg.CookieName,
		AllowQuery: cfg.AllowQueryAuth,
		Logger:     logger,
	})
	limiter := middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(rateLimit)))

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	})
	e.GET("/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			logger.Warn("readiness probe failed", slog.Any("error", err))
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"ok": false, "error": "storage unavailable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	})

	// Public auth routes, rate limited per client IP
	e.POST("/signup", authH.Signup, limiter)
	e.POST("/signin", authH.Signin, limiter)
	e.POST("/signout", authH.Signout)
	e.POST("/admin/bootstrap", authH.BootstrapAdmin, limiter)

	// Public reads
	e.GET("/providers", market.ListProviders)
	e.GET("/providers/:id", market.GetProvider)
	e.GET("/providers/:id/reviews", market.ProviderReviews)
	e.GET("/listings", market.ListListings)
	e.GET("/listings/:id", market.GetListing)
	e.GET("/categories", market.Categories)
	e.GET("/search", market.Search)
	e.GET("/users/:id", users.GetPublicProfile)

	// Authenticated
	api := e.Group("", jwt)
	api.GET("/me", authH.Me)
	api.POST("/become-provider", authH.BecomeProvider)
	api.PATCH("/user/profile", users.UpdateProfile)
	api.GET("/user/history", pay.History)
	api.GET("/user/favorites", pay.Favorites)
	api.POST("/checkout", pay.Checkout)

	api.POST("/orders/request", market.RequestOrder)
	api.GET("/orders/status", market.OrderStatus)
	api.GET("/orders/mine", market.MyOrders)
	api.POST("/orders/:id/review", market.CreateReview)

	api.GET("/conversations", msgH.ListConversations)
	api.POST("/conversations", msgH.CreateConversation)
	api.GET("/conversations/:id", msgH.GetConversation)
	api.GET("/conversations/:id/messages", msgH.ListMessages)
	api.POST("/conversations/:id/messages", msgH.PostMessage)
	api.GET("/conversations/:id/ws", msgH.ConversationWS)

	// Trader
	trader := e.Group("/trader", jwt, mware.RequireRoles(store.RoleTrader, store.RoleAdmin))
	trader.GET("/listings", market.TraderListings)
	trader.POST("/listings", market.CreateListing)
	trader.PUT("/listings/:id", market.UpdateListing)
	trader.DELETE("/listings/:id", market.DeleteListing)
	trader.GET("/profile", market.TraderProfile)
	trader.POST("/profile", market.UpsertTraderProfile)
	trader.PUT("/profile", market.UpsertTraderProfile)
	trader.GET("/orders", market.TraderOrders)
	trader.POST("/orders/:id/action", market.OrderAction)
	trader.POST("/orders/:id/complete-with-details", market.CompleteWithDetails)
	trader.GET("/summary", pay.TraderSummary)

	// Admin
	ag := e.Group("/admin", jwt, mware.AdminGuard)
	ag.GET("/users", adm.ListUsers)
	ag.DELETE("/users/:id", adm.DeleteUser)
	ag.PATCH("/users/:id/role", adm.SetRole)
	ag.DELETE("/providers/:id", adm.DeleteProvider)
	ag.DELETE("/listings/:id", adm.DeleteListing)
	ag.GET("/orders", adm.ListOrders)
	ag.GET("/stats", adm.Stats)

	return e
}

// errorHandler keeps echo's own errors (404, 405, bind failures, rate limit)
// in the same {"error": "..."} shape the handlers use.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		msg := "internal error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(status)
			}
		} else {
			logger.Error("unhandled error",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Path()),
				slog.Any("error", err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, echo.Map{"error": msg})
		}
		if err != nil {
			logger.Error("writing error response", slog.Any("error", err))
		}
	}
}
