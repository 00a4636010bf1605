package monite

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// EntityUsersService reads the authenticated entity user.
type EntityUsersService struct{ sdk *SDK }

// GetMe returns the entity user the token was issued for.
func (s *EntityUsersService) GetMe(ctx context.Context) (*EntityUser, error) {
	var user EntityUser
	if err := s.sdk.do(ctx, call{method: http.MethodGet, route: "/entity_users/me", path: "/entity_users/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetMyRole returns the role of the authenticated entity user.
func (s *EntityUsersService) GetMyRole(ctx context.Context) (*Role, error) {
	var role Role
	if err := s.sdk.do(ctx, call{method: http.MethodGet, route: "/entity_users/my_role", path: "/entity_users/my_role"}, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// RolesService reads roles by ID.
type RolesService struct{ sdk *SDK }

func (s *RolesService) GetByID(ctx context.Context, id string) (*Role, error) {
	path, err := pathID("/roles", id)
	if err != nil {
		return nil, err
	}
	var role Role
	if err := s.sdk.do(ctx, call{method: http.MethodGet, route: "/roles/{id}", path: path}, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// ApprovalPoliciesService manages approval policies.
type ApprovalPoliciesService struct{ sdk *SDK }

func (s *ApprovalPoliciesService) GetAll(ctx context.Context, params ApprovalPoliciesListParams) (*ApprovalPolicyResourceList, error) {
	q := url.Values{}
	setIf(q, "name", params.Name)
	setIf(q, "created_by", params.CreatedBy)
	setIf(q, "pagination_token", params.PaginationToken)
	setIf(q, "sort", params.Sort)
	setIf(q, "order", params.Order)
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}

	var list ApprovalPolicyResourceList
	if err := s.sdk.do(ctx, call{method: http.MethodGet, route: "/approval_policies", path: "/approval_policies", query: q}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *ApprovalPoliciesService) GetByID(ctx context.Context, id string) (*ApprovalPolicyResource, error) {
	path, err := pathID("/approval_policies", id)
	if err != nil {
		return nil, err
	}
	var policy ApprovalPolicyResource
	if err := s.sdk.do(ctx, call{method: http.MethodGet, route: "/approval_policies/{id}", path: path}, &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (s *ApprovalPoliciesService) Create(ctx context.Context, in ApprovalPolicyCreate) (*ApprovalPolicyResource, error) {
	var policy ApprovalPolicyResource
	if err := s.sdk.do(ctx, call{method: http.MethodPost, route: "/approval_policies", path: "/approval_policies", body: in}, &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

// OnboardingService reads onboarding requirements and field masks.
type OnboardingService struct{ sdk *SDK }

func (s *OnboardingService) GetRequirements(ctx context.Context) (*OnboardingRequirementsResponse, error) {
	var resp OnboardingRequirementsResponse
	if err := s.sdk.do(ctx, call{method: http.MethodGet, route: "/onboarding_requirements", path: "/onboarding_requirements"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPersonMask returns the person fields needed for the given relationships
// and, optionally, country.
func (s *OnboardingService) GetPersonMask(ctx context.Context, relationships []string, country string) (OnboardingPersonMask, error) {
	q := url.Values{}
	for _, r := range relationships {
		q.Add("relationships", r)
	}
	setIf(q, "country", country)

	var mask OnboardingPersonMask
	if err := s.sdk.do(ctx, call{method: http.MethodGet, route: "/onboarding/person_mask", path: "/onboarding/person_mask", query: q}, &mask); err != nil {
		return nil, err
	}
	return mask, nil
}

func (s *OnboardingService) GetBankAccountMasks(ctx context.Context) (OnboardingBankAccountMaskResponse, error) {
	var masks OnboardingBankAccountMaskResponse
	if err := s.sdk.do(ctx, call{method: http.MethodGet, route: "/onboarding/bank_account_masks", path: "/onboarding/bank_account_masks"}, &masks); err != nil {
		return nil, err
	}
	return masks, nil
}

// BankAccountsService manages entity bank accounts.
type BankAccountsService struct{ sdk *SDK }

func (s *BankAccountsService) Create(ctx context.Context, in CreateEntityBankAccountRequest) (*EntityBankAccountResponse, error) {
	var account EntityBankAccountResponse
	if err := s.sdk.do(ctx, call{method: http.MethodPost, route: "/bank_accounts", path: "/bank_accounts", body: in}, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *BankAccountsService) Delete(ctx context.Context, id string) error {
	path, err := pathID("/bank_accounts", id)
	if err != nil {
		return err
	}
	return s.sdk.do(ctx, call{method: http.MethodDelete, route: "/bank_accounts/{id}", path: path}, nil)
}

// TagsService manages tags.
type TagsService struct{ sdk *SDK }

func (s *TagsService) GetList(ctx context.Context, params TagsListParams) (*TagsResponse, error) {
	q := url.Values{}
	setIf(q, "pagination_token", params.PaginationToken)
	setIf(q, "created_by_entity_user_id", params.CreatedBy)
	for _, name := range params.NameIn {
		q.Add("name__in", name)
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}

	var list TagsResponse
	if err := s.sdk.do(ctx, call{method: http.MethodGet, route: "/tags", path: "/tags", query: q}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *TagsService) GetByID(ctx context.Context, id string) (*TagReadSchema, error) {
	path, err := pathID("/tags", id)
	if err != nil {
		return nil, err
	}
	var tag TagReadSchema
	if err := s.sdk.do(ctx, call{method: http.MethodGet, route: "/tags/{id}", path: path}, &tag); err != nil {
		return nil, err
	}
	return &tag, nil
}

func (s *TagsService) Create(ctx context.Context, in TagCreateSchema) (*TagReadSchema, error) {
	var tag TagReadSchema
	if err := s.sdk.do(ctx, call{method: http.MethodPost, route: "/tags", path: "/tags", body: in}, &tag); err != nil {
		return nil, err
	}
	return &tag, nil
}

func (s *TagsService) Update(ctx context.Context, id string, in TagUpdateSchema) (*TagReadSchema, error) {
	path, err := pathID("/tags", id)
	if err != nil {
		return nil, err
	}
	var tag TagReadSchema
	if err := s.sdk.do(ctx, call{method: http.MethodPatch, route: "/tags/{id}", path: path, body: in}, &tag); err != nil {
		return nil, err
	}
	return &tag, nil
}

func (s *TagsService) Delete(ctx context.Context, id string) error {
	path, err := pathID("/tags", id)
	if err != nil {
		return err
	}
	return s.sdk.do(ctx, call{method: http.MethodDelete, route: "/tags/{id}", path: path}, nil)
}

// MeasureUnitsService reads measure units.
type MeasureUnitsService struct{ sdk *SDK }

func (s *MeasureUnitsService) GetByID(ctx context.Context, id string) (*UnitResponse, error) {
	path, err := pathID("/measure_units", id)
	if err != nil {
		return nil, err
	}
	var unit UnitResponse
	if err := s.sdk.do(ctx, call{method: http.MethodGet, route: "/measure_units/{id}", path: path}, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
