// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
	"github.com/Shivanand-hulikatti/enrollhub/internal/repository"
	"github.com/Shivanand-hulikatti/enrollhub/internal/service"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Handler holds all HTTP handlers for the enrollment API.
type Handler struct {
	resources     *service.ResourceService
	registrations *service.RegistrationService
	notifications *service.NotificationService
}

// New constructs a Handler.
func New(
	resources *service.ResourceService,
	registrations *service.RegistrationService,
	notifications *service.NotificationService,
) *Handler {
	return &Handler{resources: resources, registrations: registrations, notifications: notifications}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, model.Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.Response{Success: false, Error: msg, Code: code})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// writeServiceError maps service and repository errors onto HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	case errors.Is(err, repository.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, "CAPACITY_EXCEEDED", "event is full, no seats left")
	case errors.Is(err, repository.ErrAlreadyApproved):
		writeError(w, http.StatusConflict, "ALREADY_APPROVED", "registration is already approved")
	case errors.Is(err, repository.ErrDuplicateRegistration):
		writeError(w, http.StatusConflict, "DUPLICATE_REGISTRATION", "you are already registered for this resource")
	case errors.Is(err, repository.ErrTransactionConflict):
		writeError(w, http.StatusServiceUnavailable, "TRY_AGAIN", "registration failed, try again")
	default:
		log.Error().
			Err(err).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
