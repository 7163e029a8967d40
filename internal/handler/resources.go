package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
	"github.com/go-chi/chi/v5"
)

// CreateResource handles POST /resources
func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req model.CreateResourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error())
		return
	}

	res, err := h.resources.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

// ListResources handles GET /resources?kind=&includeDeleted=
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	includeDeleted, err := queryBool(r, "includeDeleted")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "includeDeleted must be a boolean")
		return
	}

	resources, err := h.resources.List(r.Context(), model.ResourceFilter{
		Kind:           model.ResourceKind(r.URL.Query().Get("kind")),
		IncludeDeleted: includeDeleted,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if resources == nil {
		resources = []model.Resource{}
	}
	writeData(w, http.StatusOK, resources)
}

// GetResource handles GET /resources/{id}
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	res, err := h.resources.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// UpdateResource handles PUT /resources/{id}
func (h *Handler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateResourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error())
		return
	}

	res, err := h.resources.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// DeleteResource handles DELETE /resources/{id}?cascade=true
// The resource is soft deleted; cascade also removes its registrations.
func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	cascade, err := queryBool(r, "cascade")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "cascade must be a boolean")
		return
	}

	result, err := h.resources.Delete(r.Context(), chi.URLParam(r, "id"), cascade)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}
