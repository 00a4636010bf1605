package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/monite/monite-sdk-go/internal/authz"
	"github.com/monite/monite-sdk-go/internal/monite"
)

// PermissionsResponse is the grant list of one method.
type PermissionsResponse struct {
	authz.PermissionsResult
	Error string `json:"error,omitempty"`
}

// CheckResponse is one permission decision.
type CheckResponse struct {
	authz.Check
	Error string `json:"error,omitempty"`
}

// GetPermissionSet returns every grant of the authenticated user's role.
func (h *Handler) GetPermissionSet(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Resolver.Load(r.Context()); err != nil {
		respondServiceError(w, r, err)
		return
	}
	set, ok := h.deps.Resolver.PermissionSet()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "permissions are not resolved yet")
		return
	}
	respondJSON(w, http.StatusOK, set)
}

// GetPermissions returns the grants of {method}. Read failures are reported
// in the state flags, not as an HTTP error.
func (h *Handler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	method := authz.Method(chi.URLParam(r, "method"))
	if !authz.IsKnownMethod(method) {
		respondError(w, http.StatusBadRequest, "unknown permission method")
		return
	}

	// a failed load is carried by the result state
	_ = h.deps.Resolver.Load(r.Context())

	res := PermissionsResponse{PermissionsResult: h.deps.Resolver.Permissions(method)}
	if res.Err != nil {
		res.Error = monite.MessageOf(res.Err)
	}
	respondJSON(w, http.StatusOK, res)
}

// IsActionAllowed decides {method}:{action} for the authenticated user
// against the owner passed as entity_user_id.
func (h *Handler) IsActionAllowed(w http.ResponseWriter, r *http.Request) {
	op, err := authz.ParseOperator(chi.URLParam(r, "method"), chi.URLParam(r, "action"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	_ = h.deps.Resolver.Load(r.Context())

	res := CheckResponse{Check: h.deps.Resolver.IsActionAllowed(r.Context(), op, r.URL.Query().Get("entity_user_id"))}
	if res.Err != nil {
		res.Error = monite.MessageOf(res.Err)
	}
	respondJSON(w, http.StatusOK, res)
}
