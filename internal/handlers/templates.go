package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/carebook/routesheet/internal/access"
	"github.com/carebook/routesheet/internal/database"
	"github.com/carebook/routesheet/internal/middleware"
	"github.com/carebook/routesheet/internal/models"
	"github.com/carebook/routesheet/internal/services/tasks"
	"github.com/carebook/routesheet/internal/validation"
)

// TemplateHandler manages recurring task templates. Every mutation
// re-materializes the template's future slots so the route sheet stays in
// sync with the care plan.
type TemplateHandler struct {
	templateRepo *database.TemplateRepository
	taskRepo     *database.TaskRepository
	patientRepo  *database.PatientRepository
	generator    *tasks.Generator
	checker      *access.Checker
	horizonDays  int
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(
	templateRepo *database.TemplateRepository,
	taskRepo *database.TaskRepository,
	patientRepo *database.PatientRepository,
	generator *tasks.Generator,
	checker *access.Checker,
	horizonDays int,
) *TemplateHandler {
	if horizonDays <= 0 {
		horizonDays = tasks.DefaultHorizonDays
	}
	return &TemplateHandler{
		templateRepo: templateRepo,
		taskRepo:     taskRepo,
		patientRepo:  patientRepo,
		generator:    generator,
		checker:      checker,
		horizonDays:  horizonDays,
	}
}

// RegisterRoutes registers template routes on the given router.
// The router should already have the /task-templates prefix.
func (h *TemplateHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.List).Methods("GET")
	r.HandleFunc("", h.Create).Methods("POST")
	r.HandleFunc("/{id}", h.Get).Methods("GET")
	r.HandleFunc("/{id}", h.Update).Methods("PATCH")
	r.HandleFunc("/{id}", h.Delete).Methods("DELETE")
	r.HandleFunc("/{id}/toggle", h.Toggle).Methods("POST")
}

// CreateTemplateRequest represents a template creation request
type CreateTemplateRequest struct {
	PatientID       uuid.UUID          `json:"patient_id" validate:"required"`
	Title           string             `json:"title" validate:"required,min=1,max=500"`
	DaysOfWeek      []int              `json:"days_of_week,omitempty"`
	TimeRanges      []models.TimeRange `json:"time_ranges" validate:"required"`
	StartDate       time.Time          `json:"start_date" validate:"required"`
	EndDate         *time.Time         `json:"end_date,omitempty"`
	AssignedTo      *uuid.UUID         `json:"assigned_to,omitempty"`
	RelatedDiaryKey *string            `json:"related_diary_key,omitempty"`
}

// UpdateTemplateRequest represents a partial template edit
type UpdateTemplateRequest struct {
	Title           *string             `json:"title,omitempty"`
	DaysOfWeek      *[]int              `json:"days_of_week,omitempty"`
	TimeRanges      *[]models.TimeRange `json:"time_ranges,omitempty"`
	StartDate       *time.Time          `json:"start_date,omitempty"`
	EndDate         *time.Time          `json:"end_date,omitempty"`
	AssignedTo      *uuid.UUID          `json:"assigned_to,omitempty"`
	RelatedDiaryKey *string             `json:"related_diary_key,omitempty"`
}

// TemplateResponse is a template plus the number of tasks the operation
// materialized.
type TemplateResponse struct {
	Template       *models.TaskTemplate `json:"template"`
	GeneratedTasks int                  `json:"generated_tasks"`
}

// List lists a patient's templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	patientID, err := uuid.Parse(r.URL.Query().Get("patient_id"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid or missing patient_id")
		return
	}
	if _, ok := h.guardPatient(w, r, patientID); !ok {
		return
	}

	list, err := h.templateRepo.ListByPatient(r.Context(), patientID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve templates")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"templates": list})
}

// Create creates a template and materializes its horizon immediately, so the
// route sheet reflects the new plan without waiting for the next scheduled
// generation run.
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req CreateTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateStruct(w, req) {
		return
	}
	if !h.validateRule(w, req.DaysOfWeek, req.TimeRanges) {
		return
	}

	req.Title = validation.SanitizeText(req.Title)
	if req.Title == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title is required and cannot be empty after sanitization")
		return
	}
	if !validTemplateWindow(req.StartDate, req.EndDate) {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "end_date must be after start_date")
		return
	}

	if _, ok := h.guardPatient(w, r, req.PatientID); !ok {
		return
	}

	tpl := &models.TaskTemplate{
		ID:              uuid.New(),
		PatientID:       req.PatientID,
		CreatorID:       user.ID,
		AssignedTo:      req.AssignedTo,
		Title:           req.Title,
		DaysOfWeek:      req.DaysOfWeek,
		TimeRanges:      req.TimeRanges,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		IsActive:        true,
		RelatedDiaryKey: req.RelatedDiaryKey,
	}

	ctx := r.Context()
	if err := h.templateRepo.Create(ctx, tpl); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create template")
		return
	}

	created, err := h.generator.RegenerateForTemplate(ctx, tpl, h.horizonDays)
	if err != nil {
		// The template is persisted; the next scheduled run will fill the gap.
		respondJSON(w, http.StatusCreated, TemplateResponse{Template: tpl, GeneratedTasks: 0})
		return
	}

	respondJSON(w, http.StatusCreated, TemplateResponse{Template: tpl, GeneratedTasks: created})
}

// Get retrieves a template by ID
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.loadGuardedTemplate(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}

// Update edits a template, drops its not-yet-started pending tasks, and
// regenerates the horizon from the new rule
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.loadGuardedTemplate(w, r)
	if !ok {
		return
	}

	var req UpdateTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Title != nil {
		sanitized := validation.SanitizeText(*req.Title)
		if sanitized == "" {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title cannot be empty")
			return
		}
		tpl.Title = sanitized
	}
	if req.DaysOfWeek != nil {
		tpl.DaysOfWeek = *req.DaysOfWeek
	}
	if req.TimeRanges != nil {
		tpl.TimeRanges = *req.TimeRanges
	}
	if !h.validateRule(w, tpl.DaysOfWeek, tpl.TimeRanges) {
		return
	}
	if req.StartDate != nil {
		tpl.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		tpl.EndDate = req.EndDate
	}
	if req.AssignedTo != nil {
		tpl.AssignedTo = req.AssignedTo
	}
	if req.RelatedDiaryKey != nil {
		tpl.RelatedDiaryKey = req.RelatedDiaryKey
	}
	if !validTemplateWindow(tpl.StartDate, tpl.EndDate) {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "end_date must be after start_date")
		return
	}

	ctx := r.Context()
	if err := h.templateRepo.Update(ctx, tpl); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Template not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update template")
		return
	}

	created, err := h.generator.RegenerateForTemplate(ctx, tpl, h.horizonDays)
	if err != nil {
		respondJSON(w, http.StatusOK, TemplateResponse{Template: tpl, GeneratedTasks: 0})
		return
	}

	respondJSON(w, http.StatusOK, TemplateResponse{Template: tpl, GeneratedTasks: created})
}

// Toggle flips is_active. Deactivating removes the template's future pending
// tasks; reactivating regenerates them.
func (h *TemplateHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.loadGuardedTemplate(w, r)
	if !ok {
		return
	}

	tpl.IsActive = !tpl.IsActive

	ctx := r.Context()
	if err := h.templateRepo.Update(ctx, tpl); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Template not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update template")
		return
	}

	created, err := h.generator.RegenerateForTemplate(ctx, tpl, h.horizonDays)
	if err != nil {
		respondJSON(w, http.StatusOK, TemplateResponse{Template: tpl, GeneratedTasks: 0})
		return
	}

	respondJSON(w, http.StatusOK, TemplateResponse{Template: tpl, GeneratedTasks: created})
}

// Delete removes a template and its not-yet-started pending tasks. Completed
// and missed tasks generated from it stay as history.
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.loadGuardedTemplate(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if _, err := h.taskRepo.DeleteFuturePending(ctx, tpl.ID, time.Now()); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to remove generated tasks")
		return
	}

	deleted, err := h.templateRepo.Delete(ctx, tpl.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete template")
		return
	}
	if !deleted {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Template not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TemplateHandler) validateRule(w http.ResponseWriter, days []int, ranges []models.TimeRange) bool {
	if err := validation.ValidateDaysOfWeek(days); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return false
	}
	if err := validation.ValidateTimeRanges(ranges); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return false
	}
	return true
}

// guardPatient loads the patient and enforces access, mirroring the route
// sheet handler.
func (h *TemplateHandler) guardPatient(w http.ResponseWriter, r *http.Request, patientID uuid.UUID) (*models.Patient, bool) {
	user := middleware.UserFromContext(r)
	ctx := r.Context()

	patient, err := h.patientRepo.GetPatient(ctx, patientID)
	if errors.Is(err, sql.ErrNoRows) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Patient not found")
		return nil, false
	}
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve patient")
		return nil, false
	}

	allowed, err := h.checker.CanAccessPatient(ctx, user, patient)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to check access")
		return nil, false
	}
	if !allowed {
		respondJSONError(w, http.StatusForbidden, "Forbidden", "No access to this patient")
		return nil, false
	}
	return patient, true
}

func (h *TemplateHandler) loadGuardedTemplate(w http.ResponseWriter, r *http.Request) (*models.TaskTemplate, bool) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return nil, false
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid template ID")
		return nil, false
	}

	tpl, err := h.templateRepo.GetByID(r.Context(), id)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve template")
		return nil, false
	}
	if tpl == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Template not found")
		return nil, false
	}

	if _, ok := h.guardPatient(w, r, tpl.PatientID); !ok {
		return nil, false
	}
	return tpl, true
}

// validTemplateWindow reports whether end_date, when set, falls strictly
// after start_date. An open-ended template (nil end_date) is always valid.
func validTemplateWindow(start time.Time, end *time.Time) bool {
	return end == nil || end.After(start)
}
