package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
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

// RouteSheetHandler handles route sheet requests: listing a patient's tasks
// and driving the task state machine.
type RouteSheetHandler struct {
	lifecycle   *tasks.Lifecycle
	taskRepo    *database.TaskRepository
	patientRepo *database.PatientRepository
	userRepo    *database.UserRepository
	checker     *access.Checker
}

// NewRouteSheetHandler creates a new route sheet handler
func NewRouteSheetHandler(
	lifecycle *tasks.Lifecycle,
	taskRepo *database.TaskRepository,
	patientRepo *database.PatientRepository,
	userRepo *database.UserRepository,
	checker *access.Checker,
) *RouteSheetHandler {
	return &RouteSheetHandler{
		lifecycle:   lifecycle,
		taskRepo:    taskRepo,
		patientRepo: patientRepo,
		userRepo:    userRepo,
		checker:     checker,
	}
}

// RegisterRoutes registers route sheet routes on the given router.
// The router should already have the /route-sheet prefix.
func (h *RouteSheetHandler) RegisterRoutes(r *mux.Router) {
	// Fixed paths before the {id} wildcard
	r.HandleFunc("/my-tasks", h.MyTasks).Methods("GET")
	r.HandleFunc("/available-employees", h.AvailableEmployees).Methods("GET")

	r.HandleFunc("", h.List).Methods("GET")
	r.HandleFunc("", h.Create).Methods("POST")
	r.HandleFunc("/{id}", h.Get).Methods("GET")
	r.HandleFunc("/{id}", h.Update).Methods("PATCH")
	r.HandleFunc("/{id}", h.Delete).Methods("DELETE")
	r.HandleFunc("/{id}/complete", h.Complete).Methods("POST")
	r.HandleFunc("/{id}/miss", h.Miss).Methods("POST")
	r.HandleFunc("/{id}/reschedule", h.Reschedule).Methods("POST")
	r.HandleFunc("/{id}/cancel", h.Cancel).Methods("POST")
}

const (
	// MaxCommentLength is the maximum length for comments and reasons
	MaxCommentLength = 2000
	// MaxListDays is the maximum window for route sheet listings
	MaxListDays = 31
	// MaxPhotos is the maximum number of photo URLs on a completion
	MaxPhotos = 10
)

// CreateTaskRequest represents an ad-hoc task creation request
type CreateTaskRequest struct {
	PatientID       uuid.UUID  `json:"patient_id" validate:"required"`
	Title           string     `json:"title" validate:"required,min=1,max=500"`
	StartAt         time.Time  `json:"start_at" validate:"required"`
	EndAt           time.Time  `json:"end_at" validate:"required"`
	AssignedTo      *uuid.UUID `json:"assigned_to,omitempty"`
	Priority        int        `json:"priority" validate:"min=0,max=10"`
	RelatedDiaryKey *string    `json:"related_diary_key,omitempty"`
}

// UpdateTaskRequest represents a partial task edit
type UpdateTaskRequest struct {
	Title      *string    `json:"title,omitempty"`
	StartAt    *time.Time `json:"start_at,omitempty"`
	EndAt      *time.Time `json:"end_at,omitempty"`
	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
	Priority   *int       `json:"priority,omitempty"`
}

// CompleteTaskRequest represents a completion payload
type CompleteTaskRequest struct {
	Comment     *string        `json:"comment,omitempty"`
	Photos      []string       `json:"photos,omitempty"`
	Value       map[string]any `json:"value,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// MissTaskRequest represents a miss payload; the reason is mandatory
type MissTaskRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=2000"`
}

// RescheduleTaskRequest represents a reschedule payload
type RescheduleTaskRequest struct {
	StartAt time.Time `json:"start_at" validate:"required"`
	EndAt   time.Time `json:"end_at" validate:"required"`
	Reason  string    `json:"reason" validate:"required,min=1,max=2000"`
}

// TaskView is a task with display properties derived at read time.
type TaskView struct {
	*models.Task
	IsOverdue     bool `json:"is_overdue"`
	IsRescheduled bool `json:"is_rescheduled"`
}

// RouteSheetSummary aggregates status counts over the listed window.
type RouteSheetSummary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Missed    int `json:"missed"`
	Cancelled int `json:"cancelled"`
	Overdue   int `json:"overdue"`
}

// ListResponse is the route sheet listing.
type ListResponse struct {
	Tasks   []TaskView        `json:"tasks"`
	Summary RouteSheetSummary `json:"summary"`
	From    time.Time         `json:"from"`
	To      time.Time         `json:"to"`
}

func newTaskView(t *models.Task, now time.Time) TaskView {
	return TaskView{
		Task:          t,
		IsOverdue:     t.IsOverdue(now),
		IsRescheduled: t.IsRescheduled(),
	}
}

// buildListResponse derives display flags and summary counts for a listing.
func buildListResponse(list []*models.Task, from, to, now time.Time) ListResponse {
	response := ListResponse{Tasks: make([]TaskView, 0, len(list)), From: from, To: to}
	for _, t := range list {
		view := newTaskView(t, now)
		response.Tasks = append(response.Tasks, view)

		response.Summary.Total++
		switch t.Status {
		case models.TaskStatusPending:
			response.Summary.Pending++
		case models.TaskStatusCompleted:
			response.Summary.Completed++
		case models.TaskStatusMissed:
			response.Summary.Missed++
		case models.TaskStatusCancelled:
			response.Summary.Cancelled++
		}
		if view.IsOverdue {
			response.Summary.Overdue++
		}
	}
	return response
}

// groupIntoSlots buckets tasks by the hour their slot starts, sorted by slot.
func groupIntoSlots(list []*models.Task, now time.Time) []TimeSlot {
	grouped := make(map[string][]TaskView)
	for _, t := range list {
		slot := fmt.Sprintf("%02d:00", t.StartAt.Hour())
		grouped[slot] = append(grouped[slot], newTaskView(t, now))
	}

	slots := make([]TimeSlot, 0, len(grouped))
	for slot, tasksInSlot := range grouped {
		slots = append(slots, TimeSlot{Slot: slot, Tasks: tasksInSlot})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Slot < slots[j].Slot })
	return slots
}

// List returns a patient's route sheet for a day window with summary counts
func (h *RouteSheetHandler) List(w http.ResponseWriter, r *http.Request) {
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

	ctx := r.Context()
	if _, ok := h.guardPatient(w, r, patientID); !ok {
		return
	}

	from := truncateToDay(time.Now())
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid date, expected YYYY-MM-DD")
			return
		}
		from = parsed
	}

	days := 1
	if ds := r.URL.Query().Get("days"); ds != "" {
		parsed, err := strconv.Atoi(ds)
		if err != nil || parsed < 1 || parsed > MaxListDays {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("days must be between 1 and %d", MaxListDays))
			return
		}
		days = parsed
	}
	to := from.AddDate(0, 0, days)

	list, err := h.taskRepo.ListByPatientAndRange(ctx, patientID, from, to)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve route sheet")
		return
	}

	respondJSON(w, http.StatusOK, buildListResponse(list, from, to, time.Now()))
}

// Create creates an ad-hoc task on a patient's route sheet
func (h *RouteSheetHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req CreateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateStruct(w, req) {
		return
	}

	req.Title = validation.SanitizeText(req.Title)
	if req.Title == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title is required and cannot be empty after sanitization")
		return
	}

	if _, ok := h.guardPatient(w, r, req.PatientID); !ok {
		return
	}

	task, err := h.lifecycle.CreateAdHoc(r.Context(), tasks.CreateInput{
		PatientID:       req.PatientID,
		Title:           req.Title,
		StartAt:         req.StartAt,
		EndAt:           req.EndAt,
		AssignedTo:      req.AssignedTo,
		Priority:        req.Priority,
		RelatedDiaryKey: req.RelatedDiaryKey,
	})
	if err != nil {
		respondTaskError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, newTaskView(task, time.Now()))
}

// Get retrieves a task by ID
func (h *RouteSheetHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadGuardedTask(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newTaskView(task, time.Now()))
}

// Update applies partial edits to a pending task
func (h *RouteSheetHandler) Update(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadGuardedTask(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Title != nil {
		sanitized := validation.SanitizeText(*req.Title)
		req.Title = &sanitized
	}

	updated, err := h.lifecycle.Update(r.Context(), task.ID, tasks.UpdateInput{
		Title:      req.Title,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		AssignedTo: req.AssignedTo,
		Priority:   req.Priority,
	})
	if err != nil {
		respondTaskError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, newTaskView(updated, time.Now()))
}

// Delete removes a pending or cancelled task
func (h *RouteSheetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadGuardedTask(w, r)
	if !ok {
		return
	}

	if err := h.lifecycle.Delete(r.Context(), task.ID); err != nil {
		respondTaskError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Complete marks a pending task as completed
func (h *RouteSheetHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	task, ok := h.loadGuardedTask(w, r)
	if !ok {
		return
	}

	var req CompleteTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Comment != nil && len(*req.Comment) > MaxCommentLength {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Comment exceeds maximum length of %d characters", MaxCommentLength))
		return
	}
	if len(req.Photos) > MaxPhotos {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("At most %d photos are allowed", MaxPhotos))
		return
	}

	completed, err := h.lifecycle.Complete(r.Context(), task.ID, user, tasks.CompleteInput{
		Comment:     req.Comment,
		Photos:      req.Photos,
		Value:       models.DiaryValue(req.Value),
		CompletedAt: req.CompletedAt,
	})
	if err != nil {
		respondTaskError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, newTaskView(completed, time.Now()))
}

// Miss marks a pending task as missed with a mandatory reason
func (h *RouteSheetHandler) Miss(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	task, ok := h.loadGuardedTask(w, r)
	if !ok {
		return
	}

	var req MissTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateStruct(w, req) {
		return
	}

	missed, err := h.lifecycle.Miss(r.Context(), task.ID, user, req.Reason)
	if err != nil {
		respondTaskError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, newTaskView(missed, time.Now()))
}

// Reschedule moves a pending task to a new time slot
func (h *RouteSheetHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	task, ok := h.loadGuardedTask(w, r)
	if !ok {
		return
	}

	var req RescheduleTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateStruct(w, req) {
		return
	}

	rescheduled, err := h.lifecycle.Reschedule(r.Context(), task.ID, user, req.StartAt, req.EndAt, req.Reason)
	if err != nil {
		respondTaskError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, newTaskView(rescheduled, time.Now()))
}

// Cancel transitions a pending task to cancelled
func (h *RouteSheetHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	task, ok := h.loadGuardedTask(w, r)
	if !ok {
		return
	}

	cancelled, err := h.lifecycle.Cancel(r.Context(), task.ID, user)
	if err != nil {
		respondTaskError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, newTaskView(cancelled, time.Now()))
}

// TimeSlot groups a user's tasks by hour of day.
type TimeSlot struct {
	Slot  string     `json:"slot"`
	Tasks []TaskView `json:"tasks"`
}

// MyTasks lists the authenticated user's assigned tasks for a day, grouped
// into hourly slots
func (h *RouteSheetHandler) MyTasks(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	day := truncateToDay(time.Now())
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	list, err := h.taskRepo.ListByAssigneeAndRange(r.Context(), user.ID, day, day.AddDate(0, 0, 1))
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":  day.Format("2006-01-02"),
		"slots": groupIntoSlots(list, time.Now()),
	})
}

// EmployeeAvailability is one staff member's load inside a time window.
type EmployeeAvailability struct {
	User         *models.User `json:"user"`
	PendingTasks int          `json:"pending_tasks"`
	Available    bool         `json:"available"`
}

// AvailableEmployees lists the patient organization's caregiving staff with
// their pending-task load inside a window
func (h *RouteSheetHandler) AvailableEmployees(w http.ResponseWriter, r *http.Request) {
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

	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start_at"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid start_at, expected RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end_at"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid end_at, expected RFC3339")
		return
	}
	if !end.After(start) {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "end_at must be after start_at")
		return
	}

	ctx := r.Context()
	patient, ok := h.guardPatient(w, r, patientID)
	if !ok {
		return
	}
	if patient.OrganizationID == nil {
		respondJSON(w, http.StatusOK, map[string]any{"employees": []EmployeeAvailability{}})
		return
	}

	staff, err := h.userRepo.ListByOrganizationAndRoles(ctx, *patient.OrganizationID, models.RoleCaregiver, models.RoleDoctor)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve employees")
		return
	}

	ids := make([]uuid.UUID, 0, len(staff))
	for _, s := range staff {
		ids = append(ids, s.ID)
	}
	counts, err := h.taskRepo.CountOverlappingPending(ctx, ids, start, end)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to compute availability")
		return
	}

	employees := make([]EmployeeAvailability, 0, len(staff))
	for _, s := range staff {
		n := counts[s.ID]
		employees = append(employees, EmployeeAvailability{
			User:         s,
			PendingTasks: n,
			Available:    n == 0,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{"employees": employees})
}

// guardPatient loads the patient and enforces access. Writes the error
// response and returns ok=false on failure.
func (h *RouteSheetHandler) guardPatient(w http.ResponseWriter, r *http.Request, patientID uuid.UUID) (*models.Patient, bool) {
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

// loadGuardedTask parses {id}, loads the task and enforces patient access.
func (h *RouteSheetHandler) loadGuardedTask(w http.ResponseWriter, r *http.Request) (*models.Task, bool) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return nil, false
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return nil, false
	}

	task, err := h.taskRepo.GetByID(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return nil, false
	}
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve task")
		return nil, false
	}

	if _, ok := h.guardPatient(w, r, task.PatientID); !ok {
		return nil, false
	}
	return task, true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
