package tasks

import (
	"github.com/carebook/routesheet/internal/models"
	"github.com/google/uuid"
)

// NotificationKind classifies a routed notification.
type NotificationKind string

const (
	// NotificationStatusUpdate informs interested parties that a task became
	// completed or missed.
	NotificationStatusUpdate NotificationKind = "task_status_update"
	// NotificationTaskMissed is the critical notification sent to the
	// organization owner when a task is missed.
	NotificationTaskMissed NotificationKind = "task_missed"
)

// Notification is a routing decision: who must be told what about a task.
// Actual delivery (push/SMS/email) is external.
type Notification struct {
	RecipientID uuid.UUID        `json:"recipient_id"`
	Kind        NotificationKind `json:"kind"`
	TaskID      uuid.UUID        `json:"task_id"`
	PatientID   uuid.UUID        `json:"patient_id"`
	Status      models.TaskStatus `json:"status"`
}

// Route decides which actors must be informed of a task's status change.
// Pure function; org may be nil when the patient has no organization.
//
// When the actor holds a caregiving/clinical role, the organization owner and
// the patient's creator receive a status update, excluding the actor itself.
// A missed task additionally always notifies the organization owner with a
// critical notification, without excluding the actor (a deliberate asymmetry
// with the general rule).
func Route(task *models.Task, actor *models.User, patient *models.Patient, org *models.Organization) []Notification {
	if task.Status != models.TaskStatusCompleted && task.Status != models.TaskStatusMissed {
		return nil
	}

	var notifications []Notification
	seen := map[uuid.UUID]struct{}{}

	push := func(recipient uuid.UUID, kind NotificationKind) {
		notifications = append(notifications, Notification{
			RecipientID: recipient,
			Kind:        kind,
			TaskID:      task.ID,
			PatientID:   patient.ID,
			Status:      task.Status,
		})
	}

	if actor.IsCaregivingRole() {
		if org != nil && org.OwnerID != actor.ID {
			if _, dup := seen[org.OwnerID]; !dup {
				seen[org.OwnerID] = struct{}{}
				push(org.OwnerID, NotificationStatusUpdate)
			}
		}
		if patient.CreatorID != actor.ID {
			if _, dup := seen[patient.CreatorID]; !dup {
				seen[patient.CreatorID] = struct{}{}
				push(patient.CreatorID, NotificationStatusUpdate)
			}
		}
	}

	if task.Status == models.TaskStatusMissed && org != nil {
		push(org.OwnerID, NotificationTaskMissed)
	}

	return notifications
}
