package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/carebook/routesheet/internal/models"
	"github.com/carebook/routesheet/internal/recurrence"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but log if they do
	if err := Validate.RegisterValidation("task_status", validateTaskStatus); err != nil {
		panic(fmt.Sprintf("failed to register task_status validator: %v", err))
	}
	if err := Validate.RegisterValidation("clock_time", validateClockTime); err != nil {
		panic(fmt.Sprintf("failed to register clock_time validator: %v", err))
	}
}

// validateTaskStatus validates that a string is a valid TaskStatus enum value
func validateTaskStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	switch models.TaskStatus(value) {
	case models.TaskStatusPending, models.TaskStatusCompleted, models.TaskStatusMissed, models.TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// validateClockTime validates an "HH:MM" time-of-day string
func validateClockTime(fl validator.FieldLevel) bool {
	_, _, err := recurrence.ParseClock(fl.Field().String())
	return err == nil
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateTaskStatus validates a TaskStatus string value
func ValidateTaskStatus(value string) error {
	status := models.TaskStatus(value)
	switch status {
	case models.TaskStatusPending, models.TaskStatusCompleted, models.TaskStatusMissed, models.TaskStatusCancelled:
		return nil
	default:
		return fmt.Errorf("invalid status: %s (must be 'pending', 'completed', 'missed', or 'cancelled')", value)
	}
}

// ValidateDaysOfWeek validates weekday numbers (0=Sunday..6=Saturday).
func ValidateDaysOfWeek(days []int) error {
	for _, d := range days {
		if d < 0 || d > 6 {
			return fmt.Errorf("invalid day of week: %d (must be 0-6, Sunday=0)", d)
		}
	}
	return nil
}

// ValidateTimeRanges validates template slots: parseable clock times with
// end after start.
func ValidateTimeRanges(ranges []models.TimeRange) error {
	if len(ranges) == 0 {
		return fmt.Errorf("time_ranges cannot be empty")
	}
	for i, tr := range ranges {
		sh, sm, err := recurrence.ParseClock(tr.Start)
		if err != nil {
			return fmt.Errorf("time_ranges[%d].start: %w", i, err)
		}
		eh, em, err := recurrence.ParseClock(tr.End)
		if err != nil {
			return fmt.Errorf("time_ranges[%d].end: %w", i, err)
		}
		if eh*60+em <= sh*60+sm {
			return fmt.Errorf("time_ranges[%d]: end must be after start", i)
		}
		if tr.Priority != nil && (*tr.Priority < 0 || *tr.Priority > 10) {
			return fmt.Errorf("time_ranges[%d]: priority must be between 0 and 10", i)
		}
	}
	return nil
}
