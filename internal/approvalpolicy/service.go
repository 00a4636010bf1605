// Package approvalpolicy lists, reads and creates approval policies through
// the query cache.
package approvalpolicy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/monite/monite-sdk-go/internal/audit"
	"github.com/monite/monite-sdk-go/internal/authz"
	"github.com/monite/monite-sdk-go/internal/monite"
	"github.com/monite/monite-sdk-go/internal/query"
	"github.com/monite/monite-sdk-go/internal/validation"
)

// KeyApprovalPolicies prefixes every approval policy query.
var KeyApprovalPolicies = query.Key{"approval_policies"}

// ErrMissingID is returned by Get for an empty id; no request is made.
var ErrMissingID = errors.New("approval policy id is not provided")

var opCreate = authz.MustOperator(authz.Common(authz.MethodApprovalPolicy, authz.ActionCreate))

// API is the part of the Monite client the service uses.
// *monite.ApprovalPoliciesService implements it.
type API interface {
	GetAll(ctx context.Context, params monite.ApprovalPoliciesListParams) (*monite.ApprovalPolicyResourceList, error)
	GetByID(ctx context.Context, id string) (*monite.ApprovalPolicyResource, error)
	Create(ctx context.Context, in monite.ApprovalPolicyCreate) (*monite.ApprovalPolicyResource, error)
}

// Authorizer gates writes. *authz.Resolver implements it.
type Authorizer interface {
	Self(ctx context.Context) (string, error)
	Authorize(ctx context.Context, op authz.Operator, ownerUserID string) (authz.Decision, error)
}

// CreateInput is the approval policy form. Trigger and Script hold
// MoniteScript JSON documents as text.
type CreateInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Trigger     string `json:"trigger" validate:"required,json"`
	Script      string `json:"script" validate:"required,json"`
}

// Service provides approval policy operations.
type Service struct {
	api      API
	queries  *query.Client
	authz    Authorizer
	audit    audit.Logger
	entityID string
}

// NewService creates a new approval policy service.
func NewService(api API, queries *query.Client, authorizer Authorizer, auditLogger audit.Logger, entityID string) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Service{
		api:      api,
		queries:  queries,
		authz:    authorizer,
		audit:    auditLogger,
		entityID: entityID,
	}
}

// List returns one page of approval policies.
func (s *Service) List(ctx context.Context, params monite.ApprovalPoliciesListParams) (*monite.ApprovalPolicyResourceList, error) {
	variables, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return query.Fetch(ctx, s.queries, KeyApprovalPolicies.With("list", string(variables)), func(ctx context.Context) (*monite.ApprovalPolicyResourceList, error) {
		return s.api.GetAll(ctx, params)
	})
}

// Get returns one approval policy.
func (s *Service) Get(ctx context.Context, id string) (*monite.ApprovalPolicyResource, error) {
	policy, err := query.Fetch(ctx, s.queries, KeyApprovalPolicies.With("detail", id),
		func(ctx context.Context) (*monite.ApprovalPolicyResource, error) {
			return s.api.GetByID(ctx, id)
		},
		query.Enabled(id != ""),
	)
	if errors.Is(err, query.ErrDisabled) {
		return nil, ErrMissingID
	}
	return policy, err
}

// Create validates in, creates the policy and invalidates every cached
// approval policy query. onCreated, when set, receives the new policy id.
func (s *Service) Create(ctx context.Context, in CreateInput, onCreated func(id string)) (*monite.ApprovalPolicyResource, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	self, err := s.authz.Self(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.Authorize(ctx, opCreate, self); err != nil {
		return nil, err
	}

	body := monite.ApprovalPolicyCreate{
		Name:        in.Name,
		Description: in.Description,
		Trigger:     json.RawMessage(in.Trigger),
		Script:      json.RawMessage(in.Script),
	}
	policy, err := query.Mutate(ctx, s.queries, "create_approval_policy",
		func(ctx context.Context) (*monite.ApprovalPolicyResource, error) {
			return s.api.Create(ctx, body)
		},
		query.MutationOptions[*monite.ApprovalPolicyResource]{
			Invalidates: []query.Key{KeyApprovalPolicies},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create approval policy: %w", err)
	}

	s.audit.Log(ctx, audit.Event{
		Type:     audit.TypeApprovalPolicyCreated,
		EntityID: s.entityID,
		ActorID:  self,
		Resource: policy.ID,
		Metadata: map[string]any{"name": policy.Name},
	})
	if onCreated != nil {
		onCreated(policy.ID)
	}
	return policy, nil
}
