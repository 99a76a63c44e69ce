package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/routesheet/internal/models"
	"github.com/carebook/routesheet/internal/services/tasks"
)

var errTestBoom = errors.New("boom")

func taskAt(status models.TaskStatus, start, end time.Time) *models.Task {
	return &models.Task{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		Title:     "check blood pressure",
		StartAt:   start,
		EndAt:     end,
		Status:    status,
	}
}

func TestBuildListResponse_Summary(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	overdue := taskAt(models.TaskStatusPending, from.Add(8*time.Hour), from.Add(9*time.Hour))
	upcoming := taskAt(models.TaskStatusPending, from.Add(14*time.Hour), from.Add(15*time.Hour))
	completed := taskAt(models.TaskStatusCompleted, from.Add(9*time.Hour), from.Add(10*time.Hour))
	missed := taskAt(models.TaskStatusMissed, from.Add(6*time.Hour), from.Add(7*time.Hour))
	cancelled := taskAt(models.TaskStatusCancelled, from.Add(10*time.Hour), from.Add(11*time.Hour))

	resp := buildListResponse([]*models.Task{overdue, upcoming, completed, missed, cancelled}, from, to, now)

	if resp.Summary.Total != 5 {
		t.Errorf("Total = %d, want 5", resp.Summary.Total)
	}
	if resp.Summary.Pending != 2 {
		t.Errorf("Pending = %d, want 2", resp.Summary.Pending)
	}
	if resp.Summary.Completed != 1 {
		t.Errorf("Completed = %d, want 1", resp.Summary.Completed)
	}
	if resp.Summary.Missed != 1 {
		t.Errorf("Missed = %d, want 1", resp.Summary.Missed)
	}
	if resp.Summary.Cancelled != 1 {
		t.Errorf("Cancelled = %d, want 1", resp.Summary.Cancelled)
	}
	// Only the pending task whose slot already ended counts as overdue.
	if resp.Summary.Overdue != 1 {
		t.Errorf("Overdue = %d, want 1", resp.Summary.Overdue)
	}

	if len(resp.Tasks) != 5 {
		t.Fatalf("len(Tasks) = %d, want 5", len(resp.Tasks))
	}
	if !resp.Tasks[0].IsOverdue {
		t.Error("expected first task to be flagged overdue")
	}
	if resp.Tasks[1].IsOverdue {
		t.Error("upcoming pending task must not be flagged overdue")
	}
}

func TestBuildListResponse_RescheduledFlag(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	task := taskAt(models.TaskStatusPending, now.Add(time.Hour), now.Add(2*time.Hour))
	origStart := now.Add(-2 * time.Hour)
	origEnd := now.Add(-1 * time.Hour)
	task.OriginalStartAt = &origStart
	task.OriginalEndAt = &origEnd

	resp := buildListResponse([]*models.Task{task}, now, now.AddDate(0, 0, 1), now)
	if !resp.Tasks[0].IsRescheduled {
		t.Error("expected rescheduled flag for task with original timing snapshot")
	}
}

func TestGroupIntoSlots(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	morning1 := taskAt(models.TaskStatusPending, day.Add(8*time.Hour), day.Add(9*time.Hour))
	morning2 := taskAt(models.TaskStatusPending, day.Add(8*time.Hour+30*time.Minute), day.Add(9*time.Hour))
	evening := taskAt(models.TaskStatusPending, day.Add(19*time.Hour), day.Add(20*time.Hour))

	// Deliberately unsorted input; slots must come back sorted by hour.
	slots := groupIntoSlots([]*models.Task{evening, morning1, morning2}, day.Add(12*time.Hour))

	if len(slots) != 2 {
		t.Fatalf("len(slots) = %d, want 2", len(slots))
	}
	if slots[0].Slot != "08:00" {
		t.Errorf("slots[0].Slot = %s, want 08:00", slots[0].Slot)
	}
	if len(slots[0].Tasks) != 2 {
		t.Errorf("len(slots[0].Tasks) = %d, want 2", len(slots[0].Tasks))
	}
	if slots[1].Slot != "19:00" {
		t.Errorf("slots[1].Slot = %s, want 19:00", slots[1].Slot)
	}
}

func TestGroupIntoSlots_Empty(t *testing.T) {
	t.Parallel()

	slots := groupIntoSlots(nil, time.Now())
	if len(slots) != 0 {
		t.Errorf("len(slots) = %d, want 0", len(slots))
	}
}

func TestRespondTaskError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", tasks.ErrNotFound, http.StatusNotFound},
		{"state conflict", &tasks.StateConflictError{Action: "complete", Status: models.TaskStatusMissed}, http.StatusConflict},
		{"validation", &tasks.ValidationError{Field: "end_at", Reason: "must be after start_at"}, http.StatusBadRequest},
		{"unexpected", errTestBoom, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondTaskError(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("response body is not JSON: %v", err)
			}
			if success, _ := body["success"].(bool); success {
				t.Error("expected success=false in error envelope")
			}
		})
	}
}

func TestTruncateToDay(t *testing.T) {
	t.Parallel()

	in := time.Date(2026, 3, 10, 17, 42, 13, 999, time.UTC)
	got := truncateToDay(in)
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("truncateToDay = %v, want %v", got, want)
	}
}
