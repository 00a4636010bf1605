// Package tag manages entity tags. Every operation is gated by the role of
// the authenticated entity user; update and delete of a tag created by
// someone else need the "allowed" level.
package tag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/monite/monite-sdk-go/internal/audit"
	"github.com/monite/monite-sdk-go/internal/authz"
	"github.com/monite/monite-sdk-go/internal/monite"
	"github.com/monite/monite-sdk-go/internal/query"
	"github.com/monite/monite-sdk-go/internal/validation"
)

// KeyTags prefixes every tag query.
var KeyTags = query.Key{"tags"}

var (
	opRead   = authz.MustOperator(authz.Common(authz.MethodTag, authz.ActionRead))
	opCreate = authz.MustOperator(authz.Common(authz.MethodTag, authz.ActionCreate))
	opUpdate = authz.MustOperator(authz.Common(authz.MethodTag, authz.ActionUpdate))
	opDelete = authz.MustOperator(authz.Common(authz.MethodTag, authz.ActionDelete))
)

// API is the tag part of the Monite client. *monite.TagsService
// implements it.
type API interface {
	GetList(ctx context.Context, params monite.TagsListParams) (*monite.TagsResponse, error)
	GetByID(ctx context.Context, id string) (*monite.TagReadSchema, error)
	Create(ctx context.Context, in monite.TagCreateSchema) (*monite.TagReadSchema, error)
	Update(ctx context.Context, id string, in monite.TagUpdateSchema) (*monite.TagReadSchema, error)
	Delete(ctx context.Context, id string) error
}

// Authorizer gates tag operations. *authz.Resolver implements it.
type Authorizer interface {
	Self(ctx context.Context) (string, error)
	Authorize(ctx context.Context, op authz.Operator, ownerUserID string) (authz.Decision, error)
}

// Service provides tag operations.
type Service struct {
	api      API
	queries  *query.Client
	authz    Authorizer
	audit    audit.Logger
	entityID string
}

// NewService creates a tag service.
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

// List returns one page of tags. A user who may only read their own tags
// gets the list filtered to the tags they created.
func (s *Service) List(ctx context.Context, params monite.TagsListParams) (*monite.TagsResponse, error) {
	self, err := s.authz.Self(ctx)
	if err != nil {
		return nil, err
	}
	decision, err := s.authz.Authorize(ctx, opRead, self)
	if err != nil {
		return nil, err
	}
	if decision.Level == authz.LevelAllowedForOwn {
		params.CreatedBy = self
	}

	variables, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return query.Fetch(ctx, s.queries, KeyTags.With("list", string(variables)), func(ctx context.Context) (*monite.TagsResponse, error) {
		return s.api.GetList(ctx, params)
	})
}

// Get returns one tag if its creator may be read by the user.
func (s *Service) Get(ctx context.Context, id string) (*monite.TagReadSchema, error) {
	t, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.Authorize(ctx, opRead, t.CreatedByEntityUserID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) fetch(ctx context.Context, id string) (*monite.TagReadSchema, error) {
	if id == "" {
		return nil, monite.ErrMissingID
	}
	return query.Fetch(ctx, s.queries, KeyTags.With("detail", id), func(ctx context.Context) (*monite.TagReadSchema, error) {
		return s.api.GetByID(ctx, id)
	})
}

// Create creates a tag owned by the user.
func (s *Service) Create(ctx context.Context, in monite.TagCreateSchema) (*monite.TagReadSchema, error) {
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

	t, err := query.Mutate(ctx, s.queries, "create_tag",
		func(ctx context.Context) (*monite.TagReadSchema, error) {
			return s.api.Create(ctx, in)
		},
		query.MutationOptions[*monite.TagReadSchema]{Invalidates: []query.Key{KeyTags}},
	)
	if err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	s.log(ctx, audit.TypeTagCreated, self, t.ID, t.Name)
	return t, nil
}

// Update renames a tag.
func (s *Service) Update(ctx context.Context, id string, in monite.TagUpdateSchema) (*monite.TagReadSchema, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	self, err := s.authorizeOwned(ctx, opUpdate, id)
	if err != nil {
		return nil, err
	}

	t, err := query.Mutate(ctx, s.queries, "update_tag",
		func(ctx context.Context) (*monite.TagReadSchema, error) {
			return s.api.Update(ctx, id, in)
		},
		query.MutationOptions[*monite.TagReadSchema]{Invalidates: []query.Key{KeyTags}},
	)
	if err != nil {
		return nil, fmt.Errorf("update tag: %w", err)
	}
	s.log(ctx, audit.TypeTagUpdated, self, t.ID, t.Name)
	return t, nil
}

// Delete deletes a tag.
func (s *Service) Delete(ctx context.Context, id string) error {
	self, err := s.authorizeOwned(ctx, opDelete, id)
	if err != nil {
		return err
	}

	_, err = query.Mutate(ctx, s.queries, "delete_tag",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.api.Delete(ctx, id)
		},
		query.MutationOptions[struct{}]{Invalidates: []query.Key{KeyTags}},
	)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	s.log(ctx, audit.TypeTagDeleted, self, id, "")
	return nil
}

// authorizeOwned checks op against the creator of tag id and returns the
// acting user id.
func (s *Service) authorizeOwned(ctx context.Context, op authz.Operator, id string) (string, error) {
	t, err := s.fetch(ctx, id)
	if err != nil {
		return "", err
	}
	self, err := s.authz.Self(ctx)
	if err != nil {
		return "", err
	}
	if _, err := s.authz.Authorize(ctx, op, t.CreatedByEntityUserID); err != nil {
		return "", err
	}
	return self, nil
}

func (s *Service) log(ctx context.Context, typ, actor, id, name string) {
	e := audit.Event{
		Type:     typ,
		EntityID: s.entityID,
		ActorID:  actor,
		Resource: id,
	}
	if name != "" {
		e.Metadata = map[string]any{"name": name}
	}
	s.audit.Log(ctx, e)
}
