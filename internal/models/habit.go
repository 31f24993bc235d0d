package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinDurationSeconds = 1
	MaxDurationSeconds = 120
	MinPeriodicityDays = 1
	MaxPeriodicityDays = 7
)

// TimeOfDay is a wall-clock time without a date, interpreted in the scheduler's zone.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS" (the form postgres renders time::text in).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant of t on the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

type Habit struct {
	HabitID         int64      `json:"habit_id"`
	UserID          int64      `json:"user_id"`
	Place           string     `json:"place"`
	Action          string     `json:"action"`
	TimeOfDay       TimeOfDay  `json:"time_of_day"`
	DurationSeconds int        `json:"duration_seconds"`
	PeriodicityDays int        `json:"periodicity_days"`
	IsNiceHabit     bool       `json:"is_nice_habit"`
	RelatedHabitID  *int64     `json:"related_habit_id"`
	Reward          string     `json:"reward"`
	IsPublic        bool       `json:"is_public"`
	LastNotifiedAt  *time.Time `json:"last_notified_at"` // written only by the scheduler
	CreatedAt       time.Time  `json:"created_at"`
}

// HasReward reports whether a non-blank reward is declared.
func (h *Habit) HasReward() bool {
	return strings.TrimSpace(h.Reward) != ""
}

// HasRelatedHabit reports whether a related habit is declared.
func (h *Habit) HasRelatedHabit() bool {
	return h.RelatedHabitID != nil
}

// IsDue reports whether a reminder should fire at now. The local zone is now's location.
//
// A habit is due once today's time of day has been reached and at least
// PeriodicityDays calendar days have passed since the last reminder. Comparing
// calendar days rather than instants keeps a once-a-minute tick from firing twice
// on the same day.
func (h *Habit) IsDue(now time.Time) bool {
	if now.Before(h.TimeOfDay.On(now)) {
		return false
	}
	if h.LastNotifiedAt == nil {
		return true
	}
	last := h.LastNotifiedAt.In(now.Location())
	return daysBetween(last, now) >= h.PeriodicityDays
}

// NextReminder returns the earliest instant at or after now at which IsDue holds.
func (h *Habit) NextReminder(now time.Time) time.Time {
	if h.IsDue(now) {
		return now
	}
	next := h.TimeOfDay.On(now)
	if h.LastNotifiedAt != nil {
		last := h.LastNotifiedAt.In(now.Location())
		earliest := h.TimeOfDay.On(last.AddDate(0, 0, h.PeriodicityDays))
		if earliest.After(next) {
			next = earliest
		}
	}
	if next.Before(now) {
		next = h.TimeOfDay.On(now.AddDate(0, 0, 1))
	}
	return next
}

// daysBetween counts calendar days from a to b using their wall-clock dates.
func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
