package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
	"github.com/Shivanand-hulikatti/enrollhub/internal/repository"
	"github.com/go-chi/chi/v5"
)

// SubmitRegistration handles POST /resources/{id}/registrations
// Performs a concurrency-safe registration for the specified resource.
func (h *Handler) SubmitRegistration(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error())
		return
	}

	reg, err := h.registrations.Submit(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, reg)
}

// ListResourceRegistrations handles GET /resources/{id}/registrations?status=&q=
func (h *Handler) ListResourceRegistrations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ok, err := h.resources.Exists(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeServiceError(w, r, repository.ErrNotFound)
		return
	}

	filter := registrationFilter(r)
	filter.ResourceID = id
	h.listRegistrations(w, r, filter)
}

// ListRegistrations handles GET /registrations?resourceId=&kind=&status=&userId=&q=
func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	filter := registrationFilter(r)
	filter.ResourceID = r.URL.Query().Get("resourceId")
	h.listRegistrations(w, r, filter)
}

func registrationFilter(r *http.Request) model.RegistrationFilter {
	q := r.URL.Query()
	return model.RegistrationFilter{
		Kind:   model.ResourceKind(q.Get("kind")),
		Status: model.RegistrationStatus(q.Get("status")),
		UserID: q.Get("userId"),
		Search: q.Get("q"),
	}
}

func (h *Handler) listRegistrations(w http.ResponseWriter, r *http.Request, filter model.RegistrationFilter) {
	regs, err := h.registrations.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeData(w, http.StatusOK, regs)
}

// GetRegistration handles GET /registrations/{id}
func (h *Handler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registrations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, reg)
}

// ApproveRegistration handles POST /registrations/{id}/approve
func (h *Handler) ApproveRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registrations.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, reg)
}

// RejectRegistration handles DELETE /registrations/{id}
func (h *Handler) RejectRegistration(w http.ResponseWriter, r *http.Request) {
	if err := h.registrations.Reject(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Response{Success: true})
}

// ToggleLesson handles PUT /registrations/{id}/lessons/{lessonId}
func (h *Handler) ToggleLesson(w http.ResponseWriter, r *http.Request) {
	var req model.LessonToggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error())
		return
	}

	completed, err := h.registrations.ToggleLessonCompletion(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "lessonId"), req.Complete)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string][]string{"completedLessonIds": completed})
}
