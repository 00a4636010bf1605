package monite

import (
	"encoding/json"
	"time"
)

// EntityUser is the authenticated entity user (GET /entity_users/me).
type EntityUser struct {
	ID        string    `json:"id"`
	Login     string    `json:"login,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Email     string    `json:"email,omitempty"`
	RoleID    string    `json:"role_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Role is a role with its permission grants. Permissions is nil when the
// API omits the permissions block.
type Role struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Status      string           `json:"status,omitempty"`
	Permissions *RolePermissions `json:"permissions,omitempty"`
	CreatedAt   time.Time        `json:"created_at,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at,omitempty"`
}

// RolePermissions is the "permissions" block of a role.
type RolePermissions struct {
	Objects []ObjectPermission `json:"objects"`
}

// ObjectPermission lists the action grants of one object type.
type ObjectPermission struct {
	ObjectType string         `json:"object_type"`
	Actions    []ActionSchema `json:"actions"`
}

// ActionSchema is a single action grant. Permission is one of "allowed",
// "allowed_for_own" or "not_allowed".
type ActionSchema struct {
	ActionName string `json:"action_name"`
	Permission string `json:"permission"`
}

// Approval policies

type ApprovalPolicyResource struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Trigger     json.RawMessage `json:"trigger,omitempty"`
	Script      json.RawMessage `json:"script,omitempty"`
	Status      string          `json:"status,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

type ApprovalPolicyResourceList struct {
	Data                []ApprovalPolicyResource `json:"data"`
	PrevPaginationToken string                   `json:"prev_pagination_token,omitempty"`
	NextPaginationToken string                   `json:"next_pagination_token,omitempty"`
}

type ApprovalPolicyCreate struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Trigger     json.RawMessage `json:"trigger,omitempty"`
	Script      json.RawMessage `json:"script"`
}

// ApprovalPoliciesListParams filters GET /approval_policies.
type ApprovalPoliciesListParams struct {
	Name            string `json:"name,omitempty"`
	CreatedBy       string `json:"created_by,omitempty"`
	Limit           int    `json:"limit,omitempty"`
	PaginationToken string `json:"pagination_token,omitempty"`
	Sort            string `json:"sort,omitempty"`
	Order           string `json:"order,omitempty"`
}

// Onboarding

// OnboardingRequirementBankAccounts is the requirement removed once a bank
// account has been submitted.
const OnboardingRequirementBankAccounts = "bank_accounts"

// RelationshipDirector is the person relationship that does not need a
// country to resolve its person mask.
const RelationshipDirector = "director"

type OnboardingRequirementsResponse struct {
	Requirements []string       `json:"requirements"`
	Data         OnboardingData `json:"data"`
}

// OnboardingData carries already submitted onboarding sections. Nil fields
// were not submitted.
type OnboardingData struct {
	Entity       json.RawMessage         `json:"entity,omitempty"`
	Persons      json.RawMessage         `json:"persons,omitempty"`
	BankAccounts []OnboardingBankAccount `json:"bank_accounts,omitempty"`
}

// OnboardingField is one form field with its current value and server side
// validation error.
type OnboardingField struct {
	Value string `json:"value"`
	Error string `json:"error,omitempty"`
}

// OnboardingBankAccount is the bank account section of onboarding. Fields
// not required by the active mask are nil.
type OnboardingBankAccount struct {
	ID                string           `json:"id,omitempty"`
	AccountHolderName *OnboardingField `json:"account_holder_name,omitempty"`
	AccountNumber     *OnboardingField `json:"account_number,omitempty"`
	Bic               *OnboardingField `json:"bic,omitempty"`
	Country           *OnboardingField `json:"country,omitempty"`
	Currency          *OnboardingField `json:"currency,omitempty"`
	Iban              *OnboardingField `json:"iban,omitempty"`
	RoutingNumber     *OnboardingField `json:"routing_number,omitempty"`
	SortCode          *OnboardingField `json:"sort_code,omitempty"`
}

// OnboardingBankAccountMask marks which bank account fields a currency needs.
type OnboardingBankAccountMask map[string]bool

// OnboardingBankAccountMaskResponse maps a currency code to its mask.
type OnboardingBankAccountMaskResponse map[string]OnboardingBankAccountMask

// OnboardingPersonMask marks which person fields are needed, nested by section.
type OnboardingPersonMask map[string]json.RawMessage

// Bank accounts

type CreateEntityBankAccountRequest struct {
	AccountHolderName    string `json:"account_holder_name,omitempty"`
	AccountNumber        string `json:"account_number,omitempty" validate:"required_without=Iban"`
	Bic                  string `json:"bic,omitempty"`
	Country              string `json:"country" validate:"required,len=2"`
	Currency             string `json:"currency" validate:"required,len=3"`
	DisplayName          string `json:"display_name,omitempty"`
	Iban                 string `json:"iban,omitempty" validate:"required_without=AccountNumber"`
	IsDefaultForCurrency bool   `json:"is_default_for_currency"`
	RoutingNumber        string `json:"routing_number,omitempty"`
	SortCode             string `json:"sort_code,omitempty"`
}

type EntityBankAccountResponse struct {
	ID                   string `json:"id"`
	AccountHolderName    string `json:"account_holder_name,omitempty"`
	AccountNumber        string `json:"account_number,omitempty"`
	Bic                  string `json:"bic,omitempty"`
	Country              string `json:"country"`
	Currency             string `json:"currency"`
	DisplayName          string `json:"display_name,omitempty"`
	Iban                 string `json:"iban,omitempty"`
	IsDefaultForCurrency bool   `json:"is_default_for_currency"`
	RoutingNumber        string `json:"routing_number,omitempty"`
	SortCode             string `json:"sort_code,omitempty"`
}

// Tags

type TagReadSchema struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	CreatedByEntityUserID string    `json:"created_by_entity_user_id,omitempty"`
	CreatedAt             time.Time `json:"created_at,omitempty"`
	UpdatedAt             time.Time `json:"updated_at,omitempty"`
}

type TagsResponse struct {
	Data                []TagReadSchema `json:"data"`
	PrevPaginationToken string          `json:"prev_pagination_token,omitempty"`
	NextPaginationToken string          `json:"next_pagination_token,omitempty"`
}

type TagCreateSchema struct {
	Name string `json:"name" validate:"required,max=255"`
}

type TagUpdateSchema struct {
	Name string `json:"name" validate:"required,max=255"`
}

// TagsListParams filters GET /tags.
type TagsListParams struct {
	Limit           int      `json:"limit,omitempty"`
	PaginationToken string   `json:"pagination_token,omitempty"`
	CreatedBy       string   `json:"created_by_entity_user_id,omitempty"`
	NameIn          []string `json:"name__in,omitempty"`
}

// Measure units

type UnitResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
