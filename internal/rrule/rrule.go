package rrule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/hray3182/HabitLine/internal/models"
)

// ForHabit returns the RFC 5545 RRULE describing a habit's reminder cadence.
func ForHabit(h *models.Habit) string {
	parts := []string{"FREQ=DAILY"}
	if h.PeriodicityDays > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", h.PeriodicityDays))
	}
	parts = append(parts,
		fmt.Sprintf("BYHOUR=%d", h.TimeOfDay.Hour),
		fmt.Sprintf("BYMINUTE=%d", h.TimeOfDay.Minute),
	)
	return strings.Join(parts, ";")
}

// Parse parses an RRULE string anchored at dtstart. dtstart keeps its location.
func Parse(ruleStr string, dtstart time.Time) (*rrule.RRule, error) {
	opt, err := rrule.StrToROption(strings.TrimPrefix(ruleStr, "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse RRULE: %w", err)
	}
	opt.Dtstart = dtstart
	return rrule.NewRRule(*opt)
}

// Upcoming returns the next count reminder instants for h as seen from now,
// starting with the first instant at which h becomes due.
func Upcoming(h *models.Habit, now time.Time, count int) ([]time.Time, error) {
	if count <= 0 {
		return nil, nil
	}
	start := h.TimeOfDay.On(h.NextReminder(now))
	rule, err := Parse(ForHabit(h), start)
	if err != nil {
		return nil, err
	}

	var out []time.Time
	next := rule.Iterator()
	for len(out) < count {
		t, ok := next()
		if !ok {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

// Describe renders an RRULE produced by ForHabit as a short English phrase.
func Describe(ruleStr string) string {
	info := make(map[string]string)
	for _, p := range strings.Split(strings.TrimPrefix(ruleStr, "RRULE:"), ";") {
		if kv := strings.SplitN(p, "=", 2); len(kv) == 2 {
			info[kv[0]] = kv[1]
		}
	}

	if info["FREQ"] != "DAILY" {
		return ruleStr
	}

	var b strings.Builder
	if n, err := strconv.Atoi(info["INTERVAL"]); err == nil && n > 1 {
		fmt.Fprintf(&b, "every %d days", n)
	} else {
		b.WriteString("every day")
	}

	hour, herr := strconv.Atoi(info["BYHOUR"])
	minute, merr := strconv.Atoi(info["BYMINUTE"])
	if herr == nil {
		if merr != nil {
			minute = 0
		}
		fmt.Fprintf(&b, " at %02d:%02d", hour, minute)
	}
	return b.String()
}
