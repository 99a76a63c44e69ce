package validation

import (
	"testing"

	"github.com/carebook/routesheet/internal/models"
)

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trims whitespace", input: "  hello  ", want: "hello"},
		{name: "keeps newline and tab", input: "a\n\tb", want: "a\n\tb"},
		{name: "strips control characters", input: "a\x00b\x1fc", want: "abc"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateTaskStatus(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"pending", "completed", "missed", "cancelled"} {
		if err := ValidateTaskStatus(valid); err != nil {
			t.Errorf("ValidateTaskStatus(%q) = %v, want nil", valid, err)
		}
	}
	for _, invalid := range []string{"", "done", "PENDING"} {
		if err := ValidateTaskStatus(invalid); err == nil {
			t.Errorf("ValidateTaskStatus(%q) = nil, want error", invalid)
		}
	}
}

func TestValidateDaysOfWeek(t *testing.T) {
	t.Parallel()

	if err := ValidateDaysOfWeek([]int{0, 3, 6}); err != nil {
		t.Errorf("valid days: %v", err)
	}
	if err := ValidateDaysOfWeek(nil); err != nil {
		t.Errorf("nil days: %v", err)
	}
	if err := ValidateDaysOfWeek([]int{7}); err == nil {
		t.Error("expected error for day 7")
	}
	if err := ValidateDaysOfWeek([]int{-1}); err == nil {
		t.Error("expected error for day -1")
	}
}

func TestValidateTimeRanges(t *testing.T) {
	t.Parallel()

	high := 11

	tests := []struct {
		name    string
		ranges  []models.TimeRange
		wantErr bool
	}{
		{
			name:   "valid single slot",
			ranges: []models.TimeRange{{Start: "08:00", End: "09:00"}},
		},
		{
			name: "valid multiple slots",
			ranges: []models.TimeRange{
				{Start: "08:00", End: "09:00"},
				{Start: "19:30", End: "20:00"},
			},
		},
		{
			name:    "empty",
			ranges:  nil,
			wantErr: true,
		},
		{
			name:    "unparseable start",
			ranges:  []models.TimeRange{{Start: "8am", End: "09:00"}},
			wantErr: true,
		},
		{
			name:    "end before start",
			ranges:  []models.TimeRange{{Start: "09:00", End: "08:00"}},
			wantErr: true,
		},
		{
			name:    "end equals start",
			ranges:  []models.TimeRange{{Start: "09:00", End: "09:00"}},
			wantErr: true,
		},
		{
			name:    "priority override out of range",
			ranges:  []models.TimeRange{{Start: "08:00", End: "09:00", Priority: &high}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateTimeRanges(tt.ranges)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTimeRanges() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
