// Package recurrence expands task template recurrence rules into concrete
// occurrences. Expansion is pure: no I/O, deterministic for a given template
// and window.
package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carebook/routesheet/internal/models"
	"github.com/google/uuid"
)

// Occurrence is one slot a template should occupy: a calendar date combined
// with one of the template's time ranges.
type Occurrence struct {
	Date       time.Time
	StartAt    time.Time
	EndAt      time.Time
	AssignedTo *uuid.UUID
	Priority   int
}

// DateOf truncates a timestamp to its calendar date, preserving location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Expand produces the occurrences a template should occupy within the closed
// window [windowStart, windowEnd]. The window is intersected with the
// template's own date bounds; both ends are inclusive. Dates outside the
// template's days-of-week are skipped. Per-slot assignee and priority
// override the template defaults.
func Expand(tpl *models.TaskTemplate, windowStart, windowEnd time.Time) ([]Occurrence, error) {
	start := DateOf(windowStart)
	end := DateOf(windowEnd)

	if tplStart := DateOf(tpl.StartDate); tplStart.After(start) {
		start = tplStart
	}
	if tpl.EndDate != nil {
		if tplEnd := DateOf(*tpl.EndDate); tplEnd.Before(end) {
			end = tplEnd
		}
	}
	if start.After(end) {
		return nil, nil
	}

	var occurrences []Occurrence
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		if !tpl.OccursOn(int(date.Weekday())) {
			continue
		}
		for _, tr := range tpl.TimeRanges {
			startAt, err := atClock(date, tr.Start)
			if err != nil {
				return nil, fmt.Errorf("invalid time range start %q: %w", tr.Start, err)
			}
			endAt, err := atClock(date, tr.End)
			if err != nil {
				return nil, fmt.Errorf("invalid time range end %q: %w", tr.End, err)
			}

			assignee := tr.AssignedTo
			if assignee == nil {
				assignee = tpl.AssignedTo
			}
			priority := 0
			if tr.Priority != nil {
				priority = *tr.Priority
			}

			occurrences = append(occurrences, Occurrence{
				Date:       date,
				StartAt:    startAt,
				EndAt:      endAt,
				AssignedTo: assignee,
				Priority:   priority,
			})
		}
	}

	return occurrences, nil
}

// atClock combines a calendar date with an "HH:MM" time-of-day.
func atClock(date time.Time, clock string) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}

// ParseClock parses an "HH:MM" 24-hour time-of-day string.
func ParseClock(clock string) (hour, minute int, err error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", clock)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", clock)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", clock)
	}
	return hour, minute, nil
}
