package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
	"github.com/go-chi/chi/v5"
)

// ListNotifications handles GET /users/{userId}/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	out, err := h.notifications.List(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if out == nil {
		out = []model.Notification{}
	}
	writeData(w, http.StatusOK, out)
}

// MarkNotificationRead handles POST /users/{userId}/notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	err := h.notifications.MarkRead(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Response{Success: true})
}
