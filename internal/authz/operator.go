package authz

import (
	"fmt"
)

// Operator is a validated (method, action) pair. The zero Operator is
// invalid and is never allowed.
type Operator struct {
	method Method
	action Action
}

// Payable builds an operator on the payable method.
func Payable(action Action) (Operator, error) {
	if !payableActions[action] {
		return Operator{}, fmt.Errorf("%w: %q is not a payable action", ErrInvalidOperator, action)
	}
	return Operator{method: MethodPayable, action: action}, nil
}

// Common builds an operator on any method other than payable.
func Common(method Method, action Action) (Operator, error) {
	if !commonMethods[method] {
		return Operator{}, fmt.Errorf("%w: unknown method %q", ErrInvalidOperator, method)
	}
	if !commonActions[action] {
		return Operator{}, fmt.Errorf("%w: %q is not an action of %q", ErrInvalidOperator, action, method)
	}
	return Operator{method: method, action: action}, nil
}

// ParseOperator validates untrusted method and action names.
func ParseOperator(method, action string) (Operator, error) {
	if Method(method) == MethodPayable {
		return Payable(Action(action))
	}
	return Common(Method(method), Action(action))
}

// MustOperator panics if err is not nil. It is meant for operators built
// from constants.
func MustOperator(op Operator, err error) Operator {
	if err != nil {
		panic(err)
	}
	return op
}

// IsKnownMethod reports whether m is a resource-method.
func IsKnownMethod(m Method) bool {
	return m == MethodPayable || commonMethods[m]
}

func (o Operator) Method() Method { return o.method }
func (o Operator) Action() Action { return o.action }
func (o Operator) IsZero() bool   { return o.method == "" }

func (o Operator) String() string {
	return string(o.method) + ":" + string(o.action)
}
