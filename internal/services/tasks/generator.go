package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carebook/routesheet/internal/models"
	"github.com/carebook/routesheet/internal/recurrence"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultHorizonDays is the forward-looking window tasks are pre-materialized
// for when no explicit horizon is given.
const DefaultHorizonDays = 7

// Generator materializes pending tasks from active templates over a rolling
// horizon. Generation is idempotent: slots that already have a task are
// skipped, and the store's uniqueness constraint resolves concurrent runs.
type Generator struct {
	templates TemplateStore
	tasks     TaskStore
	clock     Clock
	logger    *zap.Logger
}

// NewGenerator creates a task generator.
func NewGenerator(templates TemplateStore, tasks TaskStore, clock Clock, logger *zap.Logger) *Generator {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{templates: templates, tasks: tasks, clock: clock, logger: logger}
}

// GenerateForPatient materializes tasks for every active template of a
// patient over [today, today+horizonDays], both ends inclusive. Returns the
// count of newly created tasks only.
func (g *Generator) GenerateForPatient(ctx context.Context, patientID uuid.UUID, horizonDays int) (int, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	templates, err := g.templates.ListActiveByPatient(ctx, patientID)
	if err != nil {
		return 0, fmt.Errorf("failed to load active templates: %w", err)
	}

	today := recurrence.DateOf(g.clock.Now())
	windowEnd := today.AddDate(0, 0, horizonDays)

	created := 0
	for _, tpl := range templates {
		n, err := g.generateFromTemplate(ctx, tpl, today, windowEnd)
		created += n
		if err != nil {
			return created, err
		}
	}

	g.logger.Debug("generated_tasks_for_patient",
		zap.String("patient_id", patientID.String()),
		zap.Int("created", created),
	)
	return created, nil
}

// GenerateForAllPatients runs per-patient generation for every patient with
// at least one active template. A failure for one patient does not abort the
// batch: errors are collected and the best-effort count is returned.
func (g *Generator) GenerateForAllPatients(ctx context.Context, horizonDays int) (int, error) {
	patientIDs, err := g.templates.ListPatientsWithActiveTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list patients with active templates: %w", err)
	}

	total := 0
	var errs []error
	for _, patientID := range patientIDs {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := g.GenerateForPatient(ctx, patientID, horizonDays)
		total += n
		if err != nil {
			g.logger.Error("generation_failed_for_patient",
				zap.String("patient_id", patientID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("patient %s: %w", patientID, err))
		}
	}

	g.logger.Info("generated_tasks_for_all_patients",
		zap.Int("patients", len(patientIDs)),
		zap.Int("created", total),
		zap.Int("failed_patients", len(errs)),
	)
	return total, errors.Join(errs...)
}

// RegenerateForTemplate re-materializes a template's future slots after an
// edit: not-yet-started pending tasks are deleted, then the horizon is
// regenerated from the template's current rule. Deactivated templates only
// get the deletion half.
func (g *Generator) RegenerateForTemplate(ctx context.Context, tpl *models.TaskTemplate, horizonDays int) (int, error) {
	now := g.clock.Now()
	if _, err := g.tasks.DeleteFuturePending(ctx, tpl.ID, now); err != nil {
		return 0, fmt.Errorf("failed to delete future pending tasks: %w", err)
	}

	if !tpl.IsActive {
		return 0, nil
	}
	return g.GenerateForPatient(ctx, tpl.PatientID, horizonDays)
}

func (g *Generator) generateFromTemplate(ctx context.Context, tpl *models.TaskTemplate, windowStart, windowEnd time.Time) (int, error) {
	occurrences, err := recurrence.Expand(tpl, windowStart, windowEnd)
	if err != nil {
		return 0, fmt.Errorf("template %s: %w", tpl.ID, err)
	}

	created := 0
	for _, occ := range occurrences {
		templateID := tpl.ID
		task := &models.Task{
			ID:              uuid.New(),
			PatientID:       tpl.PatientID,
			TemplateID:      &templateID,
			AssignedTo:      occ.AssignedTo,
			Title:           tpl.Title,
			StartAt:         occ.StartAt,
			EndAt:           occ.EndAt,
			Status:          models.TaskStatusPending,
			Priority:        occ.Priority,
			RelatedDiaryKey: tpl.RelatedDiaryKey,
		}

		inserted, err := g.tasks.CreateIfAbsent(ctx, task)
		if err != nil {
			return created, fmt.Errorf("template %s slot %s: %w", tpl.ID, occ.StartAt, err)
		}
		if inserted {
			created++
		}
	}
	return created, nil
}
