package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/carebook/routesheet/internal/config"
	"github.com/carebook/routesheet/internal/queue"
)

// NewGenerateCmd creates the generate trigger command
func NewGenerateCmd() *cobra.Command {
	var patientID string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Trigger task generation",
		Long:  "Enqueue a task generation run for one patient (--patient-id) or for all patients with active templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			var job *queue.Job
			if patientID != "" {
				id, err := uuid.Parse(patientID)
				if err != nil {
					return fmt.Errorf("invalid --patient-id: %w", err)
				}
				job = queue.NewPatientJob(queue.JobTypeGeneratePatient, id)
			} else {
				job = queue.NewJob(queue.JobTypeGenerateAll)
			}

			if err := enqueue(job); err != nil {
				return err
			}
			fmt.Printf("Enqueued %s job %s\n", job.Type, job.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&patientID, "patient-id", "", "Generate for a single patient")
	return cmd
}

// NewSweepCmd creates the sweep trigger command
func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Trigger an overdue sweep",
		Long:  "Enqueue a run that marks overdue pending tasks as missed",
		RunE: func(cmd *cobra.Command, args []string) error {
			job := queue.NewJob(queue.JobTypeSweepOverdue)
			if err := enqueue(job); err != nil {
				return err
			}
			fmt.Printf("Enqueued %s job %s\n", job.Type, job.ID)
			return nil
		},
	}
}

func enqueue(job *queue.Job) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer func() {
		if err := q.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close queue: %v\n", err)
		}
	}()

	if err := q.Enqueue(context.Background(), job); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}
