// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mreyes/mailfold/internal/auth"
	"github.com/mreyes/mailfold/internal/config"
	"github.com/mreyes/mailfold/internal/middleware"
)

// Router wires handlers onto a chi mux with the shared middleware stack.
type Router struct {
	handler        *Handler
	authMiddleware *auth.Middleware
	cfg            *config.Config
}

// NewRouter creates the HTTP router.
func NewRouter(handler *Handler, authMiddleware *auth.Middleware, cfg *config.Config) *Router {
	return &Router{
		handler:        handler,
		authMiddleware: authMiddleware,
		cfg:            cfg,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to chi's
// func(http.Handler) http.Handler signature.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	// Prometheus scrape endpoint, outside the versioned API and auth.
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		// Tight limit on credential guessing.
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Post("/login", router.handler.Login)
	})

	r.Route("/api/v1", func(r chi.Router) {
		if !router.cfg.Security.RateLimitDisabled {
			r.Use(httprate.LimitByIP(router.cfg.Security.RateLimitReqs, router.cfg.Security.RateLimitWindow))
		}
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(router.authMiddleware.Authenticate))

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", router.handler.ListContacts)
			r.Post("/", router.handler.CreateContact)
			r.Post("/import", router.handler.ImportContacts)
			r.Get("/{id}", router.handler.GetContact)
			r.Put("/{id}", router.handler.UpdateContact)
			r.Delete("/{id}", router.handler.DeleteContact)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", router.handler.ListGroups)
			r.Post("/", router.handler.CreateGroup)
			r.Get("/{id}", router.handler.GetGroup)
			r.Put("/{id}", router.handler.UpdateGroup)
			r.Delete("/{id}", router.handler.DeleteGroup)
			r.Get("/{id}/contacts", router.handler.GroupContacts)
			r.Delete("/{id}/contacts/{contactID}", router.handler.UnassignGroupContact)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", router.handler.ListTemplates)
			r.Post("/", router.handler.CreateTemplate)
			r.Get("/{id}", router.handler.GetTemplate)
			r.Put("/{id}", router.handler.UpdateTemplate)
			r.Delete("/{id}", router.handler.DeleteTemplate)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", router.handler.ListCampaigns)
			r.Post("/", router.handler.CreateCampaign)
			r.Get("/{id}", router.handler.GetCampaign)
			r.Put("/{id}", router.handler.UpdateCampaign)
			r.Delete("/{id}", router.handler.DeleteCampaign)
			r.Post("/{id}/send", router.handler.SendCampaign)
			r.Post("/{id}/pause", router.handler.PauseCampaign)
			r.Get("/{id}/stats", router.handler.CampaignStats)
			r.Get("/{id}/logs", router.handler.CampaignLogs)
		})

		r.Get("/stats/dashboard", router.handler.Dashboard)
	})

	return r
}
