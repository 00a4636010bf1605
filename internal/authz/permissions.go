package authz

import (
	"encoding/json"

	"github.com/monite/monite-sdk-go/internal/monite"
)

// PermissionSet is an immutable snapshot of a role's grants. A new role fetch
// yields a new PermissionSet; there is no way to change one in place.
type PermissionSet struct {
	grants map[Method]map[Action]Level
	order  []Method
	// actions keeps the wire order of each method's grants
	actions map[Method][]Action
}

// NewPermissionSet copies objects into a snapshot. A (method, action) pair
// granted more than once keeps its most restrictive level.
func NewPermissionSet(objects []ObjectPermission) PermissionSet {
	p := PermissionSet{
		grants:  make(map[Method]map[Action]Level, len(objects)),
		actions: make(map[Method][]Action, len(objects)),
	}
	for _, obj := range objects {
		byAction, ok := p.grants[obj.Method]
		if !ok {
			byAction = make(map[Action]Level, len(obj.Actions))
			p.grants[obj.Method] = byAction
			p.order = append(p.order, obj.Method)
		}
		for _, g := range obj.Actions {
			prev, seen := byAction[g.Action]
			if !seen {
				byAction[g.Action] = g.Level
				p.actions[obj.Method] = append(p.actions[obj.Method], g.Action)
				continue
			}
			if restrictiveness(g.Level) < restrictiveness(prev) {
				byAction[g.Action] = g.Level
			}
		}
	}
	return p
}

// PermissionSetFromRole converts the permissions block of a role. A nil role
// or a role without permissions yields an empty set.
func PermissionSetFromRole(role *monite.Role) PermissionSet {
	if role == nil || role.Permissions == nil {
		return NewPermissionSet(nil)
	}
	objects := make([]ObjectPermission, 0, len(role.Permissions.Objects))
	for _, o := range role.Permissions.Objects {
		actions := make([]ActionGrant, 0, len(o.Actions))
		for _, a := range o.Actions {
			actions = append(actions, ActionGrant{Action: Action(a.ActionName), Level: Level(a.Permission)})
		}
		objects = append(objects, ObjectPermission{Method: Method(o.ObjectType), Actions: actions})
	}
	return NewPermissionSet(objects)
}

// Level returns the level granted for action on method.
func (p PermissionSet) Level(method Method, action Action) (Level, bool) {
	l, ok := p.grants[method][action]
	return l, ok
}

// Grants returns a copy of the grants of method, or false when the set has
// no entry for it.
func (p PermissionSet) Grants(method Method) ([]ActionGrant, bool) {
	byAction, ok := p.grants[method]
	if !ok {
		return nil, false
	}
	out := make([]ActionGrant, 0, len(byAction))
	for _, a := range p.actions[method] {
		out = append(out, ActionGrant{Action: a, Level: byAction[a]})
	}
	return out, true
}

// Objects returns a copy of every grant in wire order.
func (p PermissionSet) Objects() []ObjectPermission {
	out := make([]ObjectPermission, 0, len(p.order))
	for _, m := range p.order {
		grants, _ := p.Grants(m)
		out = append(out, ObjectPermission{Method: m, Actions: grants})
	}
	return out
}

// Len returns the number of methods with grants.
func (p PermissionSet) Len() int {
	return len(p.order)
}

func (p PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Objects []ObjectPermission `json:"objects"`
	}{Objects: p.Objects()})
}
