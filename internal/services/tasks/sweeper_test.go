package tasks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/carebook/routesheet/internal/models"
	"github.com/google/uuid"
)

func TestSweeper_Sweep(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	// 3 hours past end: beyond the 2 hour grace, swept.
	stale := pendingTask(store, -4*time.Hour, -3*time.Hour)
	// 1 hour past end: overdue for display but inside the grace period.
	recent := pendingTask(store, -2*time.Hour, -time.Hour)
	// Future task, untouched.
	upcoming := pendingTask(store, time.Hour, 2*time.Hour)

	sweeper := NewSweeper(store, nil, &fakeClock{now: testNow}, false, nil)
	count, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("Sweep transitioned %d tasks, want 1", count)
	}

	ctx := context.Background()
	sweptTask, _ := store.GetByID(ctx, stale.ID)
	if sweptTask.Status != models.TaskStatusMissed {
		t.Errorf("Stale task status = %q, want missed", sweptTask.Status)
	}
	if sweptTask.Comment == nil || !strings.Contains(*sweptTask.Comment, "overdue") {
		t.Errorf("Swept task comment should mention overdue, got %v", sweptTask.Comment)
	}
	if sweptTask.CompletedBy != nil {
		t.Errorf("Automatic misses must leave completed_by unset")
	}
	if sweptTask.CompletedAt == nil || !sweptTask.CompletedAt.Equal(testNow) {
		t.Errorf("Swept task completed_at = %v, want the sweep clock time %v", sweptTask.CompletedAt, testNow)
	}

	recentTask, _ := store.GetByID(ctx, recent.ID)
	if recentTask.Status != models.TaskStatusPending {
		t.Errorf("Task inside grace period was swept")
	}
	if !recentTask.IsOverdue(testNow) {
		t.Errorf("Task inside grace period should still report overdue for display")
	}

	upcomingTask, _ := store.GetByID(ctx, upcoming.ID)
	if upcomingTask.Status != models.TaskStatusPending {
		t.Errorf("Future task was swept")
	}
}

func TestSweeper_SecondSweepIsNoop(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	pendingTask(store, -4*time.Hour, -3*time.Hour)

	sweeper := NewSweeper(store, nil, &fakeClock{now: testNow}, false, nil)
	ctx := context.Background()

	first, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("First sweep returned error: %v", err)
	}
	if first != 1 {
		t.Fatalf("First sweep transitioned %d, want 1", first)
	}

	second, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Second sweep returned error: %v", err)
	}
	if second != 0 {
		t.Errorf("Second sweep transitioned %d, want 0 (already missed)", second)
	}
}

func TestSweeper_NotifyModeRoutesSweptTasks(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	stale := pendingTask(store, -4*time.Hour, -3*time.Hour)

	org := &models.Organization{ID: uuid.New(), OwnerID: uuid.New(), Type: models.OrganizationTypeBoardingHouse}
	patient := &models.Patient{ID: stale.PatientID, CreatorID: uuid.New(), OrganizationID: &org.ID}
	directory := &memDirectory{patients: []*models.Patient{patient}, orgs: []*models.Organization{org}}
	dispatcher := &captureDispatcher{}
	notifier := NewNotifier(directory, dispatcher, nil)

	sweeper := NewSweeper(store, notifier, &fakeClock{now: testNow}, true, nil)
	count, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("Sweep transitioned %d, want 1", count)
	}

	if len(dispatcher.dispatched) == 0 {
		t.Fatal("Notify mode should dispatch notifications for swept tasks")
	}
	foundCritical := false
	for _, n := range dispatcher.dispatched {
		if n.Kind == NotificationTaskMissed && n.RecipientID == org.OwnerID {
			foundCritical = true
		}
	}
	if !foundCritical {
		t.Error("Organization owner should receive the critical missed notification")
	}
}
