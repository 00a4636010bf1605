// Copyright 2026 The Monite SDK Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package http is the widgets gateway: it exposes permission decisions and
// the domain services of one entity user to embedded widgets.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/monite/monite-sdk-go/internal/app"
	"github.com/monite/monite-sdk-go/internal/approvalpolicy"
	"github.com/monite/monite-sdk-go/internal/authz"
	"github.com/monite/monite-sdk-go/internal/measureunit"
	"github.com/monite/monite-sdk-go/internal/monite"
	"github.com/monite/monite-sdk-go/internal/observability/logger"
	"github.com/monite/monite-sdk-go/internal/onboarding"
	"github.com/monite/monite-sdk-go/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handler holds HTTP handlers and dependencies
type Handler struct {
	deps *app.Dependencies
}

// NewHandler creates a new HTTP handler
func NewHandler(deps *app.Dependencies) *Handler {
	return &Handler{deps: deps}
}

// RouterConfig holds the router middleware settings
type RouterConfig struct {
	AllowedOrigins []string
	CORSMaxAge     int
	RequestTimeout time.Duration
	Production     bool
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(SecurityHeaders(cfg.Production))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type"},
		ExposedHeaders:   []string{"Content-Language", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           cfg.CORSMaxAge,
	}))
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(LocaleMiddleware(h.deps.Localizer))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/permissions", func(r chi.Router) {
			r.Get("/", h.GetPermissionSet)
			r.Get("/{method}", h.GetPermissions)
			r.Get("/{method}/{action}", h.IsActionAllowed)
		})

		r.Route("/approval-policies", func(r chi.Router) {
			r.Get("/", h.ListApprovalPolicies)
			r.Post("/", h.CreateApprovalPolicy)
			r.Get("/{id}", h.GetApprovalPolicy)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", h.ListTags)
			r.Post("/", h.CreateTag)
			r.Get("/{id}", h.GetTag)
			r.Patch("/{id}", h.UpdateTag)
			r.Delete("/{id}", h.DeleteTag)
		})

		r.Route("/onboarding", func(r chi.Router) {
			r.Get("/requirements", h.GetOnboardingRequirements)
			r.Get("/person-mask", h.GetPersonMask)
			r.Get("/bank-account", h.GetBankAccountStep)
			r.Post("/bank-account", h.SubmitBankAccount)
		})

		r.Get("/measure-units/{id}", h.GetMeasureUnit)
	})

	return r
}

// HealthCheck returns the health status and the locale negotiated for the
// caller
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "monite-widgets-gateway",
		"locale":  GetLocale(r.Context()),
	})
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// respondServiceError maps a service error to a status code. API errors
// in the 4xx range keep their status; other API failures are a bad gateway.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *validation.Error
	switch {
	case errors.As(err, &vErr):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  vErr.Message,
			"fields": vErr.Fields,
		})
		return
	case errors.Is(err, authz.ErrAccessDenied):
		respondError(w, http.StatusForbidden, "access denied")
		return
	case errors.Is(err, authz.ErrUnresolved):
		w.Header().Set("Retry-After", "1")
		respondError(w, http.StatusServiceUnavailable, "permissions are not resolved yet")
		return
	case errors.Is(err, authz.ErrInvalidOperator):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, monite.ErrMissingID),
		errors.Is(err, approvalpolicy.ErrMissingID),
		errors.Is(err, measureunit.ErrMissingID),
		errors.Is(err, onboarding.ErrPersonMaskDisabled):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if status := monite.StatusCode(err); status != 0 {
		switch {
		case status == http.StatusUnauthorized:
			slog.WarnContext(r.Context(), "upstream rejected credentials",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.ErrorType("upstream_auth"),
				logger.Error(err),
			)
			respondError(w, http.StatusBadGateway, "upstream authentication failed")
		case status >= 400 && status < 500:
			respondError(w, status, monite.MessageOf(err))
		default:
			respondError(w, http.StatusBadGateway, monite.MessageOf(err))
		}
		return
	}

	slog.ErrorContext(r.Context(), "request failed",
		logger.RequestID(middleware.GetReqID(r.Context())),
		logger.Path(r.URL.Path),
		logger.Error(err),
	)
	respondError(w, http.StatusBadGateway, "upstream request failed")
}
