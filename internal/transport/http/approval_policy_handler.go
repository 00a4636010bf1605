package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/monite/monite-sdk-go/internal/approvalpolicy"
	"github.com/monite/monite-sdk-go/internal/monite"
)

// ListApprovalPolicies returns one page of approval policies
func (h *Handler) ListApprovalPolicies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := monite.ApprovalPoliciesListParams{
		Name:            q.Get("name"),
		CreatedBy:       q.Get("created_by"),
		PaginationToken: q.Get("pagination_token"),
		Sort:            q.Get("sort"),
		Order:           q.Get("order"),
	}
	limit, ok := parseLimit(q.Get("limit"))
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be a number between 1 and 100")
		return
	}
	params.Limit = limit

	list, err := h.deps.ApprovalPolicies.List(r.Context(), params)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GetApprovalPolicy returns one approval policy
func (h *Handler) GetApprovalPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.deps.ApprovalPolicies.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, policy)
}

// CreateApprovalPolicy creates an approval policy
func (h *Handler) CreateApprovalPolicy(w http.ResponseWriter, r *http.Request) {
	var req approvalpolicy.CreateInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	policy, err := h.deps.ApprovalPolicies.Create(r.Context(), req, nil)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, policy)
}

// parseLimit accepts an empty value or 1..100.
func parseLimit(v string) (int, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 100 {
		return 0, false
	}
	return n, true
}
