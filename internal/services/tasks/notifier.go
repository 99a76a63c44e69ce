package tasks

import (
	"context"
	"fmt"

	"github.com/carebook/routesheet/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier resolves the relationships a task's status change touches and
// hands the routing decision to the dispatcher. Delivery failures are logged,
// never propagated: the task transition is canonical.
type Notifier struct {
	directory  PatientDirectory
	dispatcher NotificationDispatcher
	logger     *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(directory PatientDirectory, dispatcher NotificationDispatcher, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{directory: directory, dispatcher: dispatcher, logger: logger}
}

// NotifyStatusChange routes and dispatches notifications for a task that
// just became completed or missed.
func (n *Notifier) NotifyStatusChange(ctx context.Context, task *models.Task, actor *models.User) {
	notifications, err := n.route(ctx, task, actor)
	if err != nil {
		n.logger.Warn("notification_routing_failed",
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
		return
	}
	if len(notifications) == 0 {
		return
	}
	if err := n.dispatcher.Dispatch(ctx, notifications); err != nil {
		n.logger.Warn("notification_dispatch_failed",
			zap.String("task_id", task.ID.String()),
			zap.Int("count", len(notifications)),
			zap.Error(err),
		)
	}
}

// NotifySwept routes notifications for a task the sweeper marked missed.
// There is no acting user, so nobody is excluded: the organization owner and
// the patient's creator are informed, and the owner also receives the
// critical missed notification.
func (n *Notifier) NotifySwept(ctx context.Context, task *models.Task) {
	patient, err := n.directory.GetPatient(ctx, task.PatientID)
	if err != nil {
		n.logger.Warn("notification_routing_failed",
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
		return
	}

	var notifications []Notification
	push := func(recipient uuid.UUID, kind NotificationKind) {
		notifications = append(notifications, Notification{
			RecipientID: recipient,
			Kind:        kind,
			TaskID:      task.ID,
			PatientID:   patient.ID,
			Status:      task.Status,
		})
	}

	if patient.OrganizationID != nil {
		org, err := n.directory.GetOrganization(ctx, *patient.OrganizationID)
		if err == nil {
			push(org.OwnerID, NotificationStatusUpdate)
			push(org.OwnerID, NotificationTaskMissed)
		}
	}
	push(patient.CreatorID, NotificationStatusUpdate)

	if err := n.dispatcher.Dispatch(ctx, notifications); err != nil {
		n.logger.Warn("notification_dispatch_failed",
			zap.String("task_id", task.ID.String()),
			zap.Int("count", len(notifications)),
			zap.Error(err),
		)
	}
}

func (n *Notifier) route(ctx context.Context, task *models.Task, actor *models.User) ([]Notification, error) {
	patient, err := n.directory.GetPatient(ctx, task.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve patient: %w", err)
	}

	var org *models.Organization
	if patient.OrganizationID != nil {
		org, err = n.directory.GetOrganization(ctx, *patient.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve organization: %w", err)
		}
	}

	return Route(task, actor, patient, org), nil
}
