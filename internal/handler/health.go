package handler

import (
	"database/sql"
	"net/http"
)

type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness fails when the database is unreachable so the instance is taken
// out of rotation before requests start erroring.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		RespondJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Error:   &APIError{Code: "DATABASE_UNAVAILABLE", Message: "Database is unreachable"},
		})
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
}
