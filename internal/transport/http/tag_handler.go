package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/monite/monite-sdk-go/internal/monite"
)

// ListTags returns the tags the user may read
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := parseLimit(q.Get("limit"))
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be a number between 1 and 100")
		return
	}
	params := monite.TagsListParams{
		Limit:           limit,
		PaginationToken: q.Get("pagination_token"),
		CreatedBy:       q.Get("created_by_entity_user_id"),
		NameIn:          q["name__in"],
	}

	list, err := h.deps.Tags.List(r.Context(), params)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GetTag returns one tag
func (h *Handler) GetTag(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.Tags.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// CreateTag creates a tag
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req monite.TagCreateSchema
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.deps.Tags.Create(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

// UpdateTag renames a tag
func (h *Handler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	var req monite.TagUpdateSchema
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.deps.Tags.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// DeleteTag deletes a tag
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Tags.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
