package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/carebook/routesheet/internal/models"
	"go.uber.org/zap"
)

const (
	// GracePeriod is the delay after a task's end time before the sweeper
	// marks it missed. The overdue display flag has no grace period.
	GracePeriod = 2 * time.Hour

	// SweepComment is stored on automatically missed tasks. completed_by is
	// left unset to distinguish automatic misses from actor-driven ones.
	SweepComment = "automatically marked as missed (overdue)"
)

// Sweeper periodically transitions stale pending tasks to missed. The status
// filter makes re-runs idempotent: already-missed tasks are excluded, so the
// sweeper is safe to run concurrently with itself.
type Sweeper struct {
	tasks    TaskStore
	notifier *Notifier
	clock    Clock
	notify   bool
	logger   *zap.Logger
}

// NewSweeper creates an overdue sweeper. When notify is true, swept tasks
// route the same notifications a manual miss does; the default asymmetry
// (bulk sweeps stay silent) is preserved when false.
func NewSweeper(tasks TaskStore, notifier *Notifier, clock Clock, notify bool, logger *zap.Logger) *Sweeper {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{tasks: tasks, notifier: notifier, clock: clock, notify: notify, logger: logger}
}

// Sweep marks pending tasks whose end time passed more than GracePeriod ago
// as missed and returns the number of tasks transitioned.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	cutoff := now.Add(-GracePeriod)

	if !s.notify || s.notifier == nil {
		count, err := s.tasks.MarkOverdueMissed(ctx, cutoff, now, SweepComment)
		if err != nil {
			return 0, fmt.Errorf("failed to sweep overdue tasks: %w", err)
		}
		if count > 0 {
			s.logger.Info("swept_overdue_tasks", zap.Int64("count", count))
		}
		return count, nil
	}

	// Notification mode transitions tasks one by one so each swept task can
	// be routed. Losing a conditional update means someone else transitioned
	// the task first; it is simply skipped.
	overdue, err := s.tasks.ListOverduePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue tasks: %w", err)
	}

	var swept int64
	comment := SweepComment
	for _, task := range overdue {
		task.Status = models.TaskStatusMissed
		task.CompletedAt = &now
		task.Comment = &comment

		updated, err := s.tasks.UpdateIfPending(ctx, task)
		if err != nil {
			s.logger.Error("sweep_transition_failed",
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if !updated {
			continue
		}
		swept++
		s.notifier.NotifySwept(ctx, task)
	}

	if swept > 0 {
		s.logger.Info("swept_overdue_tasks", zap.Int64("count", swept))
	}
	return swept, nil
}
