package authz

import (
	"errors"
)

// Domain errors
var (
	ErrInvalidOperator = errors.New("invalid permission operator")
	ErrAccessDenied    = errors.New("access denied")
	ErrUnresolved      = errors.New("permissions not resolved")
)

// Method is a resource-method: a named category of protected operations such
// as "payable" or "tag". It matches the object_type of a role grant.
type Method string

// Action is an operation on a Method. Payable has its own action set, every
// other method shares the common set.
type Action string

// Level is the permission level of one grant.
type Level string

// ActionGrant pairs an action with its permission level.
type ActionGrant struct {
	Action Action `json:"action_name"`
	Level  Level  `json:"permission"`
}

// ObjectPermission lists the grants of one resource-method.
type ObjectPermission struct {
	Method  Method        `json:"object_type"`
	Actions []ActionGrant `json:"actions"`
}

// restrictiveness orders levels from most restrictive (0) to least.
// Unrecognised levels count as not allowed.
func restrictiveness(l Level) int {
	switch l {
	case LevelAllowed:
		return 2
	case LevelAllowedForOwn:
		return 1
	default:
		return 0
	}
}
