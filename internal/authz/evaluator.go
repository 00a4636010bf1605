package authz

// Decision reasons
const (
	ReasonGranted         = "granted"
	ReasonOwner           = "owner_match"
	ReasonNotOwner        = "not_owner"
	ReasonMethodNotFound  = "method_not_granted"
	ReasonActionNotFound  = "action_not_granted"
	ReasonDenied          = "denied"
	ReasonInvalidOperator = "invalid_operator"
	ReasonUnresolved      = "unresolved"
)

// Decision is the outcome of one evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Level   Level  `json:"level,omitempty"`
	Reason  string `json:"reason"`
}

// Evaluate decides whether op is allowed by set. An allowed_for_own grant
// allows op only when actingUserID is not empty and equals ownerUserID.
// Every other outcome that is not an explicit allowed grant is a denial.
func Evaluate(set PermissionSet, op Operator, actingUserID, ownerUserID string) Decision {
	if op.IsZero() {
		return Decision{Reason: ReasonInvalidOperator}
	}
	if _, ok := set.grants[op.method]; !ok {
		return Decision{Reason: ReasonMethodNotFound}
	}
	level, ok := set.Level(op.method, op.action)
	if !ok {
		return Decision{Reason: ReasonActionNotFound}
	}

	switch level {
	case LevelAllowed:
		return Decision{Allowed: true, Level: level, Reason: ReasonGranted}
	case LevelAllowedForOwn:
		if actingUserID != "" && actingUserID == ownerUserID {
			return Decision{Allowed: true, Level: level, Reason: ReasonOwner}
		}
		return Decision{Level: level, Reason: ReasonNotOwner}
	default:
		return Decision{Level: level, Reason: ReasonDenied}
	}
}

// IsActionAllowed is Evaluate reduced to its boolean.
func IsActionAllowed(set PermissionSet, op Operator, actingUserID, ownerUserID string) bool {
	return Evaluate(set, op, actingUserID, ownerUserID).Allowed
}
