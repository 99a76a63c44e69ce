package workers

import (
	"context"
	"log"

	"github.com/carebook/routesheet/internal/services/tasks"
)

// NotificationSender delivers a single routed notification to its recipient.
// Push, SMS and email providers implement this.
type NotificationSender interface {
	Send(ctx context.Context, n tasks.Notification) error
}

// LogSender writes notifications to the process log. Used when no delivery
// provider is configured.
type LogSender struct{}

// Send logs the notification.
func (LogSender) Send(_ context.Context, n tasks.Notification) error {
	log.Printf("Notification %s to %s: task %s is %s (patient %s)",
		n.Kind, n.RecipientID, n.TaskID, n.Status, n.PatientID)
	return nil
}
