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

// Package app wires one Monite SDK instance to its query cache, permission
// resolver and domain services.
package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/monite/monite-sdk-go/internal/approvalpolicy"
	"github.com/monite/monite-sdk-go/internal/audit"
	"github.com/monite/monite-sdk-go/internal/authz"
	"github.com/monite/monite-sdk-go/internal/measureunit"
	"github.com/monite/monite-sdk-go/internal/monite"
	"github.com/monite/monite-sdk-go/internal/observability/logger"
	"github.com/monite/monite-sdk-go/internal/observability/metrics"
	"github.com/monite/monite-sdk-go/internal/onboarding"
	"github.com/monite/monite-sdk-go/internal/query"
	"github.com/monite/monite-sdk-go/internal/tag"
)

// ErrMissingSDK is returned by New without an SDK.
var ErrMissingSDK = errors.New("app: sdk is required")

// suppressedError is reported by the API for roles that have no entry for
// an object type. Widgets treat it as "no permission" and it is not logged.
const suppressedError = "Object type at permissions not found"

// Options configures New.
type Options struct {
	SDK *monite.SDK

	// Locale and SupportedLocales default to DefaultLocale and
	// DefaultLocales.
	Locale           string
	SupportedLocales []string

	// Query holds the cache defaults; OnError is replaced by the global
	// error hook.
	Query query.Options

	AuditLogger audit.Logger
	Instruments *metrics.Instruments
	Logger      *slog.Logger
}

// Dependencies is everything a request needs for one SDK instance.
type Dependencies struct {
	SDK       *monite.SDK
	Queries   *query.Client
	Localizer *Localizer
	Resolver  *authz.Resolver

	ApprovalPolicies *approvalpolicy.Service
	Onboarding       *onboarding.Service
	Tags             *tag.Service
	MeasureUnits     *measureunit.Service

	Audit  audit.Logger
	Logger *slog.Logger
}

// New builds the dependencies of opts.SDK. Every call creates a new query
// cache, so two SDK instances never share cached data.
func New(opts Options) (*Dependencies, error) {
	if opts.SDK == nil {
		return nil, ErrMissingSDK
	}

	auditLogger := opts.AuditLogger
	if auditLogger == nil {
		auditLogger = audit.NewSlogLogger()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	entityID := opts.SDK.EntityID()
	log = log.With(logger.Component("app"), logger.EntityID(entityID))

	supported := opts.SupportedLocales
	if len(supported) == 0 {
		supported = DefaultLocales
	}

	qopts := opts.Query
	if qopts.StaleTime == 0 {
		qopts.StaleTime = query.DefaultOptions().StaleTime
	}
	qopts.OnError = ErrorHook(auditLogger, log, entityID)
	if qopts.Logger == nil {
		qopts.Logger = opts.Logger
	}
	if qopts.Instruments == nil {
		qopts.Instruments = opts.Instruments
	}
	queries := query.NewClient(qopts)

	sdk := opts.SDK
	resolver := authz.NewResolver(sdk.EntityUsers, queries,
		authz.WithInstruments(opts.Instruments),
		authz.WithAuditLogger(auditLogger),
		authz.WithEntityID(entityID),
		authz.WithLogger(log),
	)
	sdk.OnTokenChange(func() {
		resolver.Invalidate(context.Background())
		auditLogger.Log(context.Background(), audit.Event{
			Type:     audit.TypeTokenRefreshed,
			EntityID: entityID,
		})
	})

	return &Dependencies{
		SDK:              sdk,
		Queries:          queries,
		Localizer:        NewLocalizer(opts.Locale, supported),
		Resolver:         resolver,
		ApprovalPolicies: approvalpolicy.NewService(sdk.ApprovalPolicies, queries, resolver, auditLogger, entityID),
		Onboarding:       onboarding.NewService(sdk.Onboarding, sdk.BankAccounts, queries, auditLogger, entityID),
		Tags:             tag.NewService(sdk.Tags, queries, resolver, auditLogger, entityID),
		MeasureUnits:     measureunit.NewService(sdk.MeasureUnits, queries),
		Audit:            auditLogger,
		Logger:           log,
	}, nil
}

// ErrorHook is the global query error handler. Missing object type errors
// are dropped; everything else is logged and audited.
func ErrorHook(auditLogger audit.Logger, log *slog.Logger, entityID string) query.ErrorHandler {
	return func(ctx context.Context, key query.Key, err error) {
		msg := monite.MessageOf(err)
		if strings.Contains(msg, suppressedError) {
			return
		}

		typ := audit.TypeQueryFailed
		if len(key) > 0 && key[0] == "mutation" {
			typ = audit.TypeMutationFailed
		}
		log.ErrorContext(ctx, "request failed",
			logger.QueryKey(key.String()),
			logger.StatusCode(monite.StatusCode(err)),
			logger.Error(err),
		)
		auditLogger.Log(ctx, audit.Event{
			Type:     typ,
			EntityID: entityID,
			Resource: key.String(),
			Metadata: map[string]any{
				"status":  monite.StatusCode(err),
				"message": msg,
			},
		})
	}
}

// PersisterNamespace scopes persisted queries to one entity user so that
// replicas share results without leaking them across users.
func PersisterNamespace(entityID, entityUserID string) string {
	return "monite:query:" + entityID + ":" + entityUserID + ":"
}
