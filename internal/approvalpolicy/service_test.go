package approvalpolicy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/monite/monite-sdk-go/internal/authz"
	"github.com/monite/monite-sdk-go/internal/monite"
	"github.com/monite/monite-sdk-go/internal/query"
	"github.com/monite/monite-sdk-go/internal/validation"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetAll(ctx context.Context, params monite.ApprovalPoliciesListParams) (*monite.ApprovalPolicyResourceList, error) {
	args := m.Called(ctx, params)
	list, _ := args.Get(0).(*monite.ApprovalPolicyResourceList)
	return list, args.Error(1)
}

func (m *mockAPI) GetByID(ctx context.Context, id string) (*monite.ApprovalPolicyResource, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*monite.ApprovalPolicyResource)
	return p, args.Error(1)
}

func (m *mockAPI) Create(ctx context.Context, in monite.ApprovalPolicyCreate) (*monite.ApprovalPolicyResource, error) {
	args := m.Called(ctx, in)
	p, _ := args.Get(0).(*monite.ApprovalPolicyResource)
	return p, args.Error(1)
}

type stubAuthorizer struct {
	self  string
	allow bool
	ops   []authz.Operator
}

func (a *stubAuthorizer) Self(context.Context) (string, error) { return a.self, nil }

func (a *stubAuthorizer) Authorize(_ context.Context, op authz.Operator, _ string) (authz.Decision, error) {
	a.ops = append(a.ops, op)
	if !a.allow {
		return authz.Decision{Reason: authz.ReasonDenied}, authz.ErrAccessDenied
	}
	return authz.Decision{Allowed: true, Level: authz.LevelAllowed, Reason: authz.ReasonGranted}, nil
}

func newService(api API, allow bool) (*Service, *query.Client, *stubAuthorizer) {
	qc := query.NewClient(query.DefaultOptions())
	a := &stubAuthorizer{self: "u1", allow: allow}
	return NewService(api, qc, a, nil, "ent-1"), qc, a
}

var validInput = CreateInput{
	Name:        "Large invoices",
	Description: "Needs two approvals",
	Trigger:     `{"all":["{event_name == 'submitted_for_approval'}"]}`,
	Script:      `[{"call":"ApprovalRequests.request_approval_by_users"}]`,
}

func TestService_GetWithoutIDMakesNoRequest(t *testing.T) {
	api := new(mockAPI)
	svc, _, _ := newService(api, true)

	_, err := svc.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingID)
	api.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestService_GetCachesByID(t *testing.T) {
	api := new(mockAPI)
	api.On("GetByID", mock.Anything, "ap-1").Return(&monite.ApprovalPolicyResource{ID: "ap-1", Name: "p"}, nil).Once()
	svc, _, _ := newService(api, true)

	for i := 0; i < 2; i++ {
		p, err := svc.Get(context.Background(), "ap-1")
		require.NoError(t, err)
		assert.Equal(t, "p", p.Name)
	}
	api.AssertExpectations(t)
}

func TestService_CreateValidatesInput(t *testing.T) {
	api := new(mockAPI)
	svc, _, a := newService(api, true)

	_, err := svc.Create(context.Background(), CreateInput{Name: "x", Trigger: "{", Script: ""}, nil)
	require.Error(t, err)

	fields := validation.Fields(err)
	assert.Contains(t, fields, "description")
	assert.Contains(t, fields, "trigger")
	assert.Contains(t, fields, "script")
	assert.NotContains(t, fields, "name")
	assert.Empty(t, a.ops)
	api.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_CreateRequiresPermission(t *testing.T) {
	api := new(mockAPI)
	svc, _, a := newService(api, false)

	_, err := svc.Create(context.Background(), validInput, nil)
	assert.ErrorIs(t, err, authz.ErrAccessDenied)
	require.Len(t, a.ops, 1)
	assert.Equal(t, "approval_policy:create", a.ops[0].String())
	api.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_CreateInvalidatesListAndCallsBack(t *testing.T) {
	ctx := context.Background()
	api := new(mockAPI)
	params := monite.ApprovalPoliciesListParams{Limit: 10}
	api.On("GetAll", mock.Anything, params).Return(&monite.ApprovalPolicyResourceList{}, nil).Once()
	api.On("GetAll", mock.Anything, params).Return(&monite.ApprovalPolicyResourceList{
		Data: []monite.ApprovalPolicyResource{{ID: "ap-9"}},
	}, nil).Once()
	api.On("Create", mock.Anything, mock.MatchedBy(func(in monite.ApprovalPolicyCreate) bool {
		return in.Name == validInput.Name && string(in.Script) == validInput.Script
	})).Return(&monite.ApprovalPolicyResource{ID: "ap-9", Name: validInput.Name}, nil)
	svc, _, _ := newService(api, true)

	list, err := svc.List(ctx, params)
	require.NoError(t, err)
	assert.Empty(t, list.Data)

	var createdID string
	p, err := svc.Create(ctx, validInput, func(id string) { createdID = id })
	require.NoError(t, err)
	assert.Equal(t, "ap-9", p.ID)
	assert.Equal(t, "ap-9", createdID)

	list, err = svc.List(ctx, params)
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	api.AssertExpectations(t)
}

func TestService_CreateAPIFailure(t *testing.T) {
	api := new(mockAPI)
	boom := &monite.APIError{StatusCode: 422, Message: "script is invalid"}
	api.On("Create", mock.Anything, mock.Anything).Return(nil, boom)
	svc, _, _ := newService(api, true)

	called := false
	_, err := svc.Create(context.Background(), validInput, func(string) { called = true })
	require.Error(t, err)

	var apiErr *monite.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "script is invalid", monite.MessageOf(err))
	assert.False(t, called)
}
