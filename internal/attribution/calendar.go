package attribution

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidArgument reports a caller contract violation: a negative
// window count, an unknown weekday name or an empty instance list.
// It is a programming error, not a runtime condition to retry.
var ErrInvalidArgument = errors.New("invalid argument")

// GenerateInstances returns the dates of a weekly recurring event around
// a reference date, ascending and exactly 7 days apart. The anchor is the
// most recent occurrence of weekday on or before ref; pastCount earlier
// and futureCount later occurrences surround it, so the result always
// holds pastCount+1+futureCount dates.
func GenerateInstances(ref time.Time, pastCount, futureCount int, weekday time.Weekday) ([]time.Time, error) {
	if pastCount < 0 || futureCount < 0 {
		return nil, fmt.Errorf("%w: window counts must be non-negative (past=%d, future=%d)", ErrInvalidArgument, pastCount, futureCount)
	}

	anchor := anchorFor(ref, weekday)
	instances := make([]time.Time, 0, pastCount+1+futureCount)
	for i := -pastCount; i <= futureCount; i++ {
		instances = append(instances, anchor.AddDate(0, 0, 7*i))
	}
	return instances, nil
}

// anchorFor returns the most recent occurrence of weekday on or before
// ref, truncated to midnight. A ref that already falls on weekday is its
// own anchor.
func anchorFor(ref time.Time, weekday time.Weekday) time.Time {
	day := DateOf(ref)
	delta := (int(day.Weekday()) - int(weekday) + 7) % 7
	return day.AddDate(0, 0, -delta)
}

// DateOf strips the time-of-day component, keeping the location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseWeekday maps a Mon..Sun configuration value (short or full name,
// any case) to a time.Weekday.
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mon", "monday":
		return time.Monday, nil
	case "tue", "tuesday":
		return time.Tuesday, nil
	case "wed", "wednesday":
		return time.Wednesday, nil
	case "thu", "thursday":
		return time.Thursday, nil
	case "fri", "friday":
		return time.Friday, nil
	case "sat", "saturday":
		return time.Saturday, nil
	case "sun", "sunday":
		return time.Sunday, nil
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidArgument, s)
}

// InstanceStatus places an instance date relative to the reference date.
type InstanceStatus string

const (
	StatusPast     InstanceStatus = "past"
	StatusCurrent  InstanceStatus = "current"
	StatusUpcoming InstanceStatus = "upcoming"
)

// StatusOf classifies an instance date against the reference date. The
// anchor occurrence (most recent on/before ref) is the current one;
// earlier instances are past, later ones upcoming.
func StatusOf(instance, ref time.Time) InstanceStatus {
	day := DateOf(instance)
	anchor := anchorFor(ref, day.Weekday())
	switch {
	case day.Before(anchor):
		return StatusPast
	case day.After(anchor):
		return StatusUpcoming
	}
	return StatusCurrent
}

// LabelFor builds the display label for an instance date, e.g.
// "Sep 1 (this week)".
func LabelFor(instance, ref time.Time) string {
	d := instance.Format("Jan 2")
	switch StatusOf(instance, ref) {
	case StatusCurrent:
		return d + " (this week)"
	case StatusUpcoming:
		return d + " (upcoming)"
	}
	return d
}
