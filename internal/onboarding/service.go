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

// Package onboarding reads the onboarding requirements and masks of an
// entity and drives the bank account onboarding step.
package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/monite/monite-sdk-go/internal/audit"
	"github.com/monite/monite-sdk-go/internal/monite"
	"github.com/monite/monite-sdk-go/internal/observability/logger"
	"github.com/monite/monite-sdk-go/internal/query"
)

// Query keys. Onboarding data does not go stale on its own; it changes
// only through PatchRequirements or an invalidation.
var (
	KeyOnboarding       = query.Key{"onboarding"}
	KeyRequirements     = query.Key{"onboarding", "requirements"}
	KeyPersonMasks      = query.Key{"onboarding", "personMasks"}
	KeyBankAccountMasks = query.Key{"onboarding", "bankAccountMasks"}
)

// ErrPersonMaskDisabled is returned by PersonMask when the filter cannot
// resolve a mask. No request is made.
var ErrPersonMaskDisabled = errors.New("onboarding: person mask needs relationships and a country")

// API is the onboarding part of the Monite client.
// *monite.OnboardingService implements it.
type API interface {
	GetRequirements(ctx context.Context) (*monite.OnboardingRequirementsResponse, error)
	GetPersonMask(ctx context.Context, relationships []string, country string) (monite.OnboardingPersonMask, error)
	GetBankAccountMasks(ctx context.Context) (monite.OnboardingBankAccountMaskResponse, error)
}

// BankAccountAPI creates and deletes entity bank accounts.
// *monite.BankAccountsService implements it.
type BankAccountAPI interface {
	Create(ctx context.Context, in monite.CreateEntityBankAccountRequest) (*monite.EntityBankAccountResponse, error)
	Delete(ctx context.Context, id string) error
}

// Service provides onboarding reads and the bank account step.
type Service struct {
	api          API
	bankAccounts BankAccountAPI
	queries      *query.Client
	audit        audit.Logger
	logger       *slog.Logger
	entityID     string
}

// NewService creates an onboarding service.
func NewService(api API, bankAccounts BankAccountAPI, queries *query.Client, auditLogger audit.Logger, entityID string) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Service{
		api:          api,
		bankAccounts: bankAccounts,
		queries:      queries,
		audit:        auditLogger,
		logger:       slog.Default().With(logger.Component("onboarding")),
		entityID:     entityID,
	}
}

func onboardingOptions(extra ...query.Option) []query.Option {
	return append([]query.Option{query.WithStaleTime(query.Infinite), query.WithRetry(0)}, extra...)
}

// Requirements returns the outstanding requirements and submitted data.
func (s *Service) Requirements(ctx context.Context) (*monite.OnboardingRequirementsResponse, error) {
	return query.Fetch(ctx, s.queries, KeyRequirements, s.api.GetRequirements, onboardingOptions()...)
}

// PersonMaskEnabled reports whether a person mask can be requested for the
// relationships and country. A director alone needs no country.
func PersonMaskEnabled(relationships []string, country string) bool {
	if len(relationships) == 0 {
		return false
	}
	onlyDirector := len(relationships) == 1 && relationships[0] == monite.RelationshipDirector
	return onlyDirector || country != ""
}

type personMaskFilter struct {
	Country      string   `json:"country,omitempty"`
	Relationship []string `json:"relationship"`
}

// PersonMask returns the person fields required for the relationships
// and country.
func (s *Service) PersonMask(ctx context.Context, relationships []string, country string) (monite.OnboardingPersonMask, error) {
	enabled := PersonMaskEnabled(relationships, country)

	key := KeyPersonMasks
	if enabled {
		filter, err := json.Marshal(personMaskFilter{Country: country, Relationship: relationships})
		if err != nil {
			return nil, err
		}
		key = KeyPersonMasks.With(string(filter))
	}

	mask, err := query.Fetch(ctx, s.queries, key, func(ctx context.Context) (monite.OnboardingPersonMask, error) {
		return s.api.GetPersonMask(ctx, relationships, country)
	}, onboardingOptions(query.Enabled(enabled))...)
	if errors.Is(err, query.ErrDisabled) {
		return nil, ErrPersonMaskDisabled
	}
	return mask, err
}

// BankAccountMasks returns the bank account mask of every supported
// currency.
func (s *Service) BankAccountMasks(ctx context.Context) (monite.OnboardingBankAccountMaskResponse, error) {
	return query.Fetch(ctx, s.queries, KeyBankAccountMasks, s.api.GetBankAccountMasks, onboardingOptions()...)
}

// RequirementsPatch is merged into the cached requirements. Non-nil data
// sections replace the cached ones; listed requirements are removed.
type RequirementsPatch struct {
	Data         monite.OnboardingData
	Requirements []string
}

// PatchRequirements applies patch to the cached requirements without a
// request. It reports false when nothing is cached.
func (s *Service) PatchRequirements(ctx context.Context, patch RequirementsPatch) bool {
	return query.Update(ctx, s.queries, KeyRequirements, func(cur *monite.OnboardingRequirementsResponse) *monite.OnboardingRequirementsResponse {
		if cur == nil {
			return nil
		}
		next := &monite.OnboardingRequirementsResponse{Data: cur.Data}
		if patch.Data.Entity != nil {
			next.Data.Entity = patch.Data.Entity
		}
		if patch.Data.Persons != nil {
			next.Data.Persons = patch.Data.Persons
		}
		if patch.Data.BankAccounts != nil {
			next.Data.BankAccounts = patch.Data.BankAccounts
		}
		next.Requirements = make([]string, 0, len(cur.Requirements))
		for _, r := range cur.Requirements {
			if !slices.Contains(patch.Requirements, r) {
				next.Requirements = append(next.Requirements, r)
			}
		}
		return next
	})
}
