// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campuskit/affinity/internal/config"
	"github.com/campuskit/affinity/internal/middleware"
)

// Router assembles the HTTP routing table.
type Router struct {
	handler *Handler
	cfg     *config.Config
}

// NewRouter creates a router around the given handler set.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup builds the full middleware and route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints stay outside the rate limit so probes never 429.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByRealIP(router.cfg.Server.RateLimitReqs, router.cfg.Server.RateLimitWindow))
		r.Use(middleware.Prometheus)

		r.Get("/projects/{id}/related", router.handler.Related)

		r.Post("/signals/click-through", router.handler.ClickThrough)
		r.Post("/projects/{id}/views", router.handler.View)
		r.Post("/projects/{id}/engagement", router.handler.Engagement)

		r.Get("/projects/{id}/likes", router.handler.Likes)
		r.Put("/projects/{id}/likes/{userID}", router.handler.AddLike)
		r.Delete("/projects/{id}/likes/{userID}", router.handler.RemoveLike)

		// Privileged surface, disabled when no admin token is configured.
		r.Group(func(r chi.Router) {
			r.Use(requireAdminToken(router.cfg.Admin.Token))

			r.Post("/affinity/adjust", router.handler.Adjust)
			r.Put("/projects/{id}", router.handler.UpsertProject)
			r.Patch("/projects/{id}/active", router.handler.SetProjectActive)
		})
	})

	return r
}

// requireAdminToken guards privileged routes with a static bearer token.
// An empty configured token disables the routes entirely.
func requireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := NewResponseWriter(w, r)

			if token == "" {
				rw.NotFound("not found")
				return
			}

			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
				rw.Unauthorized("missing bearer token")
				return
			}
			presented := auth[len(prefix):]
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				rw.Unauthorized("invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
