package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-mebel/internal/cart"
	"github.com/noah-isme/backend-mebel/internal/checkout"
	"github.com/noah-isme/backend-mebel/internal/common"
	"github.com/noah-isme/backend-mebel/internal/config"
	"github.com/noah-isme/backend-mebel/internal/health"
	"github.com/noah-isme/backend-mebel/internal/lock"
	"github.com/noah-isme/backend-mebel/internal/obs"
	"github.com/noah-isme/backend-mebel/internal/ratelimit"
	"github.com/noah-isme/backend-mebel/internal/security"
)

type routes struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Cart        *cart.Handler
	Checkout    *checkout.Handler
	Health      health.Handler
	Limiter     ratelimit.Handler
	Locker      lock.Locker
	HTTPMetrics *obs.HTTPMetrics
	Metrics     http.Handler
	Tracing     bool
}

func newRouter(rt routes) http.Handler {
	cfg := rt.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if rt.Tracing {
		r.Use(obs.Tracing)
	}
	if rt.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: rt.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: rt.Logger}.Middleware)
	r.Use(security.Headers{NoStore: true, HSTSMaxAge: cfg.HSTSMaxAge}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", common.SessionHeader},
		ExposedHeaders:   []string{common.SessionHeader, "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics)
	}
	r.Get("/health/live", rt.Health.Live)
	r.Get("/health/ready", rt.Health.Ready)

	sessions := cart.SessionCookie{
		Name:     cfg.SessionCookieName,
		Domain:   cfg.CookieDomain,
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
		MaxAge:   cfg.CartTTL,
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(sessions.Middleware)
		v.Get("/plans", rt.Checkout.Plans)
		v.Get("/cart", rt.Cart.Get)
		v.Get("/orders/confirmation", rt.Checkout.Confirmation)

		v.Group(func(w chi.Router) {
			w.Use(rt.Limiter.Middleware)
			w.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
			w.Use(lock.SessionMiddleware{Locker: rt.Locker, Wait: cfg.SessionLockWait, Logger: rt.Logger}.Middleware)
			w.Post("/cart/items", rt.Cart.AddItem)
			w.Patch("/cart/items/{index}", rt.Cart.UpdateItem)
			w.Delete("/cart/items/{index}", rt.Cart.RemoveItem)
			w.Delete("/cart", rt.Cart.Clear)
			w.Post("/quote", rt.Checkout.Quote)
			w.Post("/checkout", rt.Checkout.Checkout)
		})
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
