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

package authz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/monite/monite-sdk-go/internal/audit"
	"github.com/monite/monite-sdk-go/internal/monite"
	"github.com/monite/monite-sdk-go/internal/observability/logger"
	"github.com/monite/monite-sdk-go/internal/observability/metrics"
	"github.com/monite/monite-sdk-go/internal/observability/tracing"
	"github.com/monite/monite-sdk-go/internal/query"
)

// Query keys of the two reads behind every decision.
var (
	KeyEntityUsers = query.Key{"entity_users"}
	KeyMe          = query.Key{"entity_users", "me"}
	KeyMyRole      = query.Key{"entity_users", "my_role"}
)

// Source reads the authenticated entity user and their role.
// *monite.EntityUsersService implements it.
type Source interface {
	GetMe(ctx context.Context) (*monite.EntityUser, error)
	GetMyRole(ctx context.Context) (*monite.Role, error)
}

// State is the combined status of the user and role reads.
type State struct {
	IsLoading  bool  `json:"is_loading"`
	IsPending  bool  `json:"is_pending"`
	IsSuccess  bool  `json:"is_success"`
	IsError    bool  `json:"is_error"`
	IsFetching bool  `json:"is_fetching"`
	Err        error `json:"-"`
}

// PermissionsResult is the grant list of one method plus the read state.
// Data is nil until both reads have succeeded, and when the role has no
// entry for the method.
type PermissionsResult struct {
	State
	Data                []ActionGrant `json:"data"`
	UserIDFromAuthToken string        `json:"user_id_from_auth_token,omitempty"`
}

// Check is the outcome of IsActionAllowed. Allowed is false whenever the
// state is not a success.
type Check struct {
	State
	Allowed  bool     `json:"allowed"`
	Decision Decision `json:"decision"`
}

// Resolver caches the authenticated user and role in a query client and
// answers permission questions from them.
type Resolver struct {
	source      Source
	queries     *query.Client
	instruments *metrics.Instruments
	audit       audit.Logger
	logger      *slog.Logger
	entityID    string

	memoMu   sync.Mutex
	memoRole *monite.Role
	memoSet  PermissionSet
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

func WithInstruments(i *metrics.Instruments) ResolverOption {
	return func(r *Resolver) { r.instruments = i }
}

func WithAuditLogger(l audit.Logger) ResolverOption {
	return func(r *Resolver) { r.audit = l }
}

func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// WithEntityID tags audit events with the entity.
func WithEntityID(id string) ResolverOption {
	return func(r *Resolver) { r.entityID = id }
}

// NewResolver creates a resolver reading through queries.
func NewResolver(source Source, queries *query.Client, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source:  source,
		queries: queries,
		audit:   audit.Nop{},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With(logger.Component("authz"))
	return r
}

// Load fetches the user and the role concurrently and waits for both.
// Fresh cached data is not refetched. A read superseded by a token change
// while in flight is fetched once more; ErrUnresolved is returned if the
// reads are still not settled after that.
func (r *Resolver) Load(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "authz.Resolver.Load")

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = r.fetch(ctx); err != nil || r.settled() {
			break
		}
		r.logger.DebugContext(ctx, "permission reads superseded, fetching again")
		err = ErrUnresolved
	}

	tracing.EndSpan(span, err)
	return err
}

func (r *Resolver) fetch(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := query.Fetch(ctx, r.queries, KeyMyRole, r.source.GetMyRole)
		return err
	})
	g.Go(func() error {
		_, err := query.Fetch(ctx, r.queries, KeyMe, r.source.GetMe)
		return err
	})
	return g.Wait()
}

// settled reports whether both reads hold successful data.
func (r *Resolver) settled() bool {
	user, role, _ := r.snapshots()
	return user.IsSuccess() && user.HasData && role.IsSuccess() && role.HasData
}

// Invalidate drops the cached user and role, superseding fetches in flight.
// It runs whenever the access token changes.
func (r *Resolver) Invalidate(ctx context.Context) {
	r.queries.Invalidate(ctx, KeyEntityUsers)
}

// State returns the combined read state without fetching.
func (r *Resolver) State() State {
	_, _, st := r.snapshots()
	return st
}

func (r *Resolver) snapshots() (query.Snapshot[*monite.EntityUser], query.Snapshot[*monite.Role], State) {
	user := query.Peek[*monite.EntityUser](r.queries, KeyMe)
	role := query.Peek[*monite.Role](r.queries, KeyMyRole)

	st := State{
		IsLoading:  role.IsLoading() || user.IsLoading(),
		IsPending:  role.IsPending() || user.IsPending(),
		IsSuccess:  role.IsSuccess() && user.IsSuccess(),
		IsError:    role.IsError() || user.IsError(),
		IsFetching: role.IsFetching || user.IsFetching,
	}
	if role.Err != nil {
		st.Err = role.Err
	} else {
		st.Err = user.Err
	}
	return user, role, st
}

// PermissionSet returns the snapshot of the cached role, or false while the
// role is not available.
func (r *Resolver) PermissionSet() (PermissionSet, bool) {
	role := query.Peek[*monite.Role](r.queries, KeyMyRole)
	if !role.HasData || role.Data == nil {
		return PermissionSet{}, false
	}
	return r.permissionSet(role.Data), true
}

func (r *Resolver) permissionSet(role *monite.Role) PermissionSet {
	r.memoMu.Lock()
	defer r.memoMu.Unlock()
	if r.memoRole != role {
		r.memoRole = role
		r.memoSet = PermissionSetFromRole(role)
	}
	return r.memoSet
}

// Permissions returns the grants of method from the cached role without
// fetching.
func (r *Resolver) Permissions(method Method) PermissionsResult {
	user, role, st := r.snapshots()

	res := PermissionsResult{State: st}
	if user.HasData && user.Data != nil {
		res.UserIDFromAuthToken = user.Data.ID
	}
	if st.IsError || res.UserIDFromAuthToken == "" || !role.HasData || role.Data == nil || role.Data.Permissions == nil {
		return res
	}
	if grants, ok := r.permissionSet(role.Data).Grants(method); ok {
		res.Data = grants
	}
	return res
}

// IsActionAllowed evaluates op for the authenticated user against a
// resource owned by ownerUserID, without fetching. While either read is
// unresolved or failed the check is not allowed and carries that state.
func (r *Resolver) IsActionAllowed(ctx context.Context, op Operator, ownerUserID string) Check {
	user, role, st := r.snapshots()
	check := Check{State: st}

	if st.IsError || !user.HasData || user.Data == nil || !role.HasData || role.Data == nil {
		check.Decision = Decision{Reason: ReasonUnresolved}
		return check
	}

	check.Decision = Evaluate(r.permissionSet(role.Data), op, user.Data.ID, ownerUserID)
	check.Allowed = check.Decision.Allowed
	r.instruments.RecordDecision(ctx, string(op.Method()), string(op.Action()), check.Allowed)
	r.logger.DebugContext(ctx, "permission evaluated",
		logger.Method(string(op.Method())),
		logger.Action(string(op.Action())),
		logger.EntityUserID(user.Data.ID),
		logger.Allowed(check.Allowed),
		logger.String("reason", check.Decision.Reason),
	)
	return check
}

// Self loads the user and role if needed and returns the id of the
// authenticated entity user.
func (r *Resolver) Self(ctx context.Context) (string, error) {
	if err := r.Load(ctx); err != nil {
		return "", fmt.Errorf("resolve permissions: %w", err)
	}
	user := query.Peek[*monite.EntityUser](r.queries, KeyMe)
	if !user.HasData || user.Data == nil {
		return "", fmt.Errorf("resolve permissions: %w", ErrUnresolved)
	}
	if user.Data.ID == "" {
		return "", fmt.Errorf("resolve permissions: %w", ErrAccessDenied)
	}
	return user.Data.ID, nil
}

// Authorize loads the user and role if needed and returns ErrAccessDenied
// unless op is allowed on a resource owned by ownerUserID. The decision is
// returned in both cases. Reads that are still unresolved yield
// ErrUnresolved, never a denial.
func (r *Resolver) Authorize(ctx context.Context, op Operator, ownerUserID string) (Decision, error) {
	if err := r.Load(ctx); err != nil {
		return Decision{Reason: ReasonUnresolved}, fmt.Errorf("resolve permissions: %w", err)
	}
	check := r.IsActionAllowed(ctx, op, ownerUserID)
	if check.Allowed {
		return check.Decision, nil
	}
	if check.Decision.Reason == ReasonUnresolved {
		return check.Decision, fmt.Errorf("%w: %s", ErrUnresolved, op)
	}

	var actor string
	if user := query.Peek[*monite.EntityUser](r.queries, KeyMe); user.HasData && user.Data != nil {
		actor = user.Data.ID
	}
	r.audit.Log(ctx, audit.Event{
		Type:     audit.TypePermissionDenied,
		EntityID: r.entityID,
		ActorID:  actor,
		Resource: string(op.Method()),
		Metadata: map[string]any{
			"action": string(op.Action()),
			"owner":  ownerUserID,
			"reason": check.Decision.Reason,
		},
	})
	return check.Decision, fmt.Errorf("%w: %s", ErrAccessDenied, op)
}
