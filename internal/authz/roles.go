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

// -----------------------------------------------------------------------------
// Resource-Method Constants
// These are the object_type values of role grants.
// -----------------------------------------------------------------------------

const (
	// MethodPayable uses the payable action set.
	MethodPayable Method = "payable"

	MethodCounterpart       Method = "counterpart"
	MethodTag               Method = "tag"
	MethodRole              Method = "role"
	MethodApprovalPolicy    Method = "approval_policy"
	MethodWorkflow          Method = "workflow"
	MethodProduct           Method = "product"
	MethodReceivable        Method = "receivable"
	MethodEntityUser        Method = "entity_user"
	MethodEntityBankAccount Method = "entity_bank_account"
	MethodOnboarding        Method = "onboarding"
	MethodPerson            Method = "person"
)

// commonMethods are the methods that use the common action set.
var commonMethods = map[Method]bool{
	MethodCounterpart:       true,
	MethodTag:               true,
	MethodRole:              true,
	MethodApprovalPolicy:    true,
	MethodWorkflow:          true,
	MethodProduct:           true,
	MethodReceivable:        true,
	MethodEntityUser:        true,
	MethodEntityBankAccount: true,
	MethodOnboarding:        true,
	MethodPerson:            true,
}

// -----------------------------------------------------------------------------
// Permission Level Constants
// -----------------------------------------------------------------------------

const (
	// LevelAllowed grants the action on every resource.
	LevelAllowed Level = "allowed"

	// LevelAllowedForOwn grants the action only on resources the acting user
	// owns.
	LevelAllowedForOwn Level = "allowed_for_own"

	// LevelNotAllowed denies the action. An absent grant means the same.
	LevelNotAllowed Level = "not_allowed"
)

// -----------------------------------------------------------------------------
// Action Constants
// -----------------------------------------------------------------------------

// Common actions
const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Payable actions beyond the common four
const (
	ActionSubmit           Action = "submit"
	ActionApprove          Action = "approve"
	ActionCancel           Action = "cancel"
	ActionPay              Action = "pay"
	ActionReopen           Action = "reopen"
	ActionCreateFromMail   Action = "create_from_mail"
	ActionPayByCounterpart Action = "pay_by_counterpart"
)

var commonActions = map[Action]bool{
	ActionRead:   true,
	ActionCreate: true,
	ActionUpdate: true,
	ActionDelete: true,
}

var payableActions = map[Action]bool{
	ActionRead:             true,
	ActionCreate:           true,
	ActionUpdate:           true,
	ActionDelete:           true,
	ActionSubmit:           true,
	ActionApprove:          true,
	ActionCancel:           true,
	ActionPay:              true,
	ActionReopen:           true,
	ActionCreateFromMail:   true,
	ActionPayByCounterpart: true,
}
