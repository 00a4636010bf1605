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

// Package monite is a typed client for the Monite API. Every request carries
// the bearer token from the configured token source and is scoped to one
// entity through the x-monite-entity-id header.
package monite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/monite/monite-sdk-go/internal/observability/logger"
	"github.com/monite/monite-sdk-go/internal/observability/metrics"
)

const (
	// DefaultAPIURL is used when Config.APIURL is empty.
	DefaultAPIURL = "https://api.sandbox.monite.com/v1"

	// APIVersion is sent as x-monite-version.
	APIVersion = "2023-06-04"

	// SDKVersion is sent as x-monite-sdk-version.
	SDKVersion = "0.1.0"
)

// Header names
const (
	HeaderEntityID   = "x-monite-entity-id"
	HeaderVersion    = "x-monite-version"
	HeaderSDKVersion = "x-monite-sdk-version"
	HeaderRequestID  = "x-request-id"
)

// Config configures an SDK instance.
type Config struct {
	// EntityID is the entity that owns every requested resource. Required.
	EntityID string

	// FetchToken produces or refreshes the access token. Required.
	FetchToken FetchToken

	// APIURL is the base URL, DefaultAPIURL when empty.
	APIURL string

	// Headers are extra headers sent with every request. They may override
	// the entity and version headers but never the SDK version header.
	Headers map[string]string

	HTTPClient *http.Client

	// RequestsPerSecond throttles outgoing requests; zero disables throttling.
	RequestsPerSecond float64
	Burst             int

	Instruments *metrics.Instruments
	Logger      *slog.Logger
}

// SDK is the entry point to the Monite API.
type SDK struct {
	entityID    string
	baseURL     string
	httpClient  *http.Client
	headers     http.Header
	tokens      *tokenCache
	limiter     *rate.Limiter
	instruments *metrics.Instruments
	logger      *slog.Logger

	EntityUsers      *EntityUsersService
	Roles            *RolesService
	ApprovalPolicies *ApprovalPoliciesService
	Onboarding       *OnboardingService
	BankAccounts     *BankAccountsService
	Tags             *TagsService
	MeasureUnits     *MeasureUnitsService
}

// New validates cfg and builds an SDK.
func New(cfg Config) (*SDK, error) {
	if cfg.FetchToken == nil || cfg.EntityID == "" {
		return nil, ErrMissingConfig
	}
	if _, err := uuid.Parse(cfg.EntityID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntityID, cfg.EntityID)
	}

	baseURL := strings.TrimRight(cfg.APIURL, "/")
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("monite: invalid api url %q: %w", baseURL, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	headers := http.Header{}
	headers.Set(HeaderEntityID, cfg.EntityID)
	headers.Set(HeaderVersion, APIVersion)
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	headers.Set(HeaderSDKVersion, SDKVersion)

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &SDK{
		entityID:    cfg.EntityID,
		baseURL:     baseURL,
		httpClient:  httpClient,
		headers:     headers,
		tokens:      newTokenCache(cfg.FetchToken),
		instruments: cfg.Instruments,
		logger:      log.With(logger.Component("monite_sdk"), logger.EntityID(cfg.EntityID)),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	s.EntityUsers = &EntityUsersService{sdk: s}
	s.Roles = &RolesService{sdk: s}
	s.ApprovalPolicies = &ApprovalPoliciesService{sdk: s}
	s.Onboarding = &OnboardingService{sdk: s}
	s.BankAccounts = &BankAccountsService{sdk: s}
	s.Tags = &TagsService{sdk: s}
	s.MeasureUnits = &MeasureUnitsService{sdk: s}
	return s, nil
}

// EntityID returns the entity every request is scoped to.
func (s *SDK) EntityID() string {
	return s.entityID
}

// OnTokenChange registers fn to run whenever the token source yields a
// different access token than the one cached.
func (s *SDK) OnTokenChange(fn func()) {
	s.tokens.addHook(fn)
}

// call describes one API request. route is the templated path used as the
// metrics label.
type call struct {
	method string
	route  string
	path   string
	query  url.Values
	body   any
}

func (s *SDK) do(ctx context.Context, c call, out any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var payload []byte
	if c.body != nil {
		var err error
		payload, err = json.Marshal(c.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", c.method, c.route, err)
		}
	}

	// one retry with a fresh token after a 401
	for attempt := 0; ; attempt++ {
		status, raw, err := s.send(ctx, c, payload)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized && attempt == 0 {
			s.tokens.invalidate()
			continue
		}
		if status < 200 || status > 299 {
			apiErr := newAPIError(c.method, c.path, status, raw)
			s.logger.WarnContext(ctx, "monite api request failed",
				logger.HTTPMethod(c.method),
				logger.Path(c.route),
				logger.StatusCode(status),
				logger.Error(apiErr),
			)
			return apiErr
		}
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", c.method, c.route, err)
		}
		return nil
	}
}

func (s *SDK) send(ctx context.Context, c call, payload []byte) (int, []byte, error) {
	tok, err := s.tokens.get(ctx)
	if err != nil {
		return 0, nil, err
	}

	target := s.baseURL + c.path
	if len(c.query) > 0 {
		target += "?" + c.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, c.method, target, body)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range s.headers {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", tok.TokenType+" "+tok.AccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", c.method, c.route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	s.instruments.RecordAPIRequest(ctx, c.method, c.route, resp.StatusCode, elapsed)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s %s: %w", c.method, c.route, err)
	}

	s.logger.DebugContext(ctx, "monite api request",
		logger.HTTPMethod(c.method),
		logger.Path(c.route),
		logger.StatusCode(resp.StatusCode),
		logger.Duration(int64(elapsed)),
	)
	return resp.StatusCode, raw, nil
}

func pathID(prefix, id string) (string, error) {
	if id == "" {
		return "", ErrMissingID
	}
	return prefix + "/" + url.PathEscape(id), nil
}
