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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/monite/monite-sdk-go/internal/app"
	"github.com/monite/monite-sdk-go/internal/audit"
	"github.com/monite/monite-sdk-go/internal/config"
	"github.com/monite/monite-sdk-go/internal/monite"
	"github.com/monite/monite-sdk-go/internal/observability/logger"
	"github.com/monite/monite-sdk-go/internal/observability/metrics"
	"github.com/monite/monite-sdk-go/internal/observability/tracing"
	"github.com/monite/monite-sdk-go/internal/query"
	transportHTTP "github.com/monite/monite-sdk-go/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTELEnabled: cfg.Observability.OTELEnabled,
	})
	slog.Info("starting monite widgets gateway",
		logger.EntityID(cfg.Monite.EntityID),
		logger.EntityUserID(cfg.Monite.EntityUserID),
	)

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	if tracer != nil {
		defer tracer.Shutdown(ctx)
	}

	// Initialize meter
	var instruments *metrics.Instruments
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	} else if instruments, err = metrics.NewInstruments(meter); err != nil {
		slog.Error("failed to register instruments", logger.Error(err))
	}

	auditLogger := audit.NewSlogLogger()

	// Query cache, optionally shared between replicas through Redis
	retryDelay := cfg.Query.RetryDelay
	queryOpts := query.Options{
		StaleTime: cfg.Query.StaleTime,
		Retry:     cfg.Query.Retry,
		RetryDelay: func(attempt int) time.Duration {
			return retryDelay << attempt
		},
	}
	if cfg.Query.RedisAddr != "" {
		rdb, err := query.NewRedisClient(ctx, cfg.Query.RedisAddr)
		if err != nil {
			slog.Error("failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
		defer rdb.Close()
		queryOpts.Persister = query.NewRedisPersister(rdb,
			app.PersisterNamespace(cfg.Monite.EntityID, cfg.Monite.EntityUserID),
			cfg.Query.RedisTTL,
		)
		slog.Info("connected to redis", logger.Component("query"))
	}

	// Initialize the Monite SDK
	sdk, err := monite.New(monite.Config{
		EntityID: cfg.Monite.EntityID,
		APIURL:   cfg.Monite.APIURL,
		FetchToken: monite.ClientCredentials(monite.ClientCredentialsConfig{
			APIURL:       cfg.Monite.APIURL,
			ClientID:     cfg.Monite.ClientID,
			ClientSecret: cfg.Monite.ClientSecret,
			EntityUserID: cfg.Monite.EntityUserID,
		}),
		Headers:           cfg.Monite.Headers,
		RequestsPerSecond: cfg.RateLimit.APIRequestsPerSecond,
		Burst:             cfg.RateLimit.APIBurst,
		Instruments:       instruments,
		Logger:            log,
	})
	if err != nil {
		slog.Error("failed to initialize monite sdk", logger.Error(err))
		os.Exit(1)
	}

	deps, err := app.New(app.Options{
		SDK:              sdk,
		Locale:           cfg.Locale.Default,
		SupportedLocales: cfg.Locale.Supported,
		Query:            queryOpts,
		AuditLogger:      auditLogger,
		Instruments:      instruments,
		Logger:           log,
	})
	if err != nil {
		slog.Error("failed to initialize dependencies", logger.Error(err))
		os.Exit(1)
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Close()
	if err := rateLimiter.SetTrustedProxies(cfg.RateLimit.TrustedProxies); err != nil {
		slog.Error("invalid rate limit configuration", logger.Error(err))
		os.Exit(1)
	}

	// Create router
	router := transportHTTP.NewRouter(transportHTTP.NewHandler(deps), rateLimiter, transportHTTP.RouterConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		CORSMaxAge:     cfg.CORS.MaxAge,
		RequestTimeout: cfg.Server.RequestTimeout,
		Production:     cfg.IsProduction(),
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}
