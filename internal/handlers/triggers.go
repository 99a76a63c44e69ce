package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/carebook/routesheet/internal/middleware"
	"github.com/carebook/routesheet/internal/models"
	"github.com/carebook/routesheet/internal/queue"
)

// TriggerHandler exposes on-demand generation and sweep triggers. The worker
// runs both on a schedule; these endpoints let operators and admins force a
// run without waiting for it.
type TriggerHandler struct {
	queue queue.JobQueue
}

// NewTriggerHandler creates a new trigger handler
func NewTriggerHandler(q queue.JobQueue) *TriggerHandler {
	return &TriggerHandler{queue: q}
}

// RegisterRoutes registers trigger routes on the given router.
// The router should already have the /internal prefix.
func (h *TriggerHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/generate", h.Generate).Methods("POST")
	r.HandleFunc("/sweep", h.Sweep).Methods("POST")
}

// Generate enqueues a generation run. With patient_id it targets one patient,
// otherwise all patients with active templates.
func (h *TriggerHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var job *queue.Job
	if pid := r.URL.Query().Get("patient_id"); pid != "" {
		patientID, err := uuid.Parse(pid)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid patient_id")
			return
		}
		job = queue.NewPatientJob(queue.JobTypeGeneratePatient, patientID)
	} else {
		job = queue.NewJob(queue.JobTypeGenerateAll)
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Failed to enqueue generation job")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"type":   job.Type,
	})
}

// Sweep enqueues an overdue sweep run
func (h *TriggerHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	job := queue.NewJob(queue.JobTypeSweepOverdue)
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Failed to enqueue sweep job")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"type":   job.Type,
	})
}

func (h *TriggerHandler) requireAdmin(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return nil, false
	}
	if !user.HasAnyRole(models.RoleOwner, models.RoleAdmin) {
		respondJSONError(w, http.StatusForbidden, "Forbidden", "Admin role required")
		return nil, false
	}
	return user, true
}
