package rrule

import (
	"testing"
	"time"

	"github.com/hray3182/HabitLine/internal/models"
)

func TestForHabitAndDescribe(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		habit    models.Habit
		rule     string
		describe string
	}{
		{
			name:     "daily",
			habit:    models.Habit{TimeOfDay: models.TimeOfDay{Hour: 7, Minute: 5}, PeriodicityDays: 1},
			rule:     "FREQ=DAILY;BYHOUR=7;BYMINUTE=5",
			describe: "every day at 07:05",
		},
		{
			name:     "every two days",
			habit:    models.Habit{TimeOfDay: models.TimeOfDay{Hour: 21}, PeriodicityDays: 2},
			rule:     "FREQ=DAILY;INTERVAL=2;BYHOUR=21;BYMINUTE=0",
			describe: "every 2 days at 21:00",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ForHabit(&tt.habit)
			if got != tt.rule {
				t.Fatalf("ForHabit = %q, want %q", got, tt.rule)
			}
			if d := Describe(got); d != tt.describe {
				t.Fatalf("Describe(%q) = %q, want %q", got, d, tt.describe)
			}
		})
	}
}

func TestDescribeUnknownFrequency(t *testing.T) {
	t.Parallel()
	if got := Describe("FREQ=WEEKLY;BYDAY=MO"); got != "FREQ=WEEKLY;BYDAY=MO" {
		t.Fatalf("Describe = %q, want the rule unchanged", got)
	}
}

func TestUpcoming(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("MSK", 3*60*60)
	last := time.Date(2024, 5, 10, 8, 0, 0, 0, loc)
	h := &models.Habit{
		TimeOfDay:       models.TimeOfDay{Hour: 8},
		PeriodicityDays: 2,
		LastNotifiedAt:  &last,
	}

	got, err := Upcoming(h, time.Date(2024, 5, 10, 9, 0, 0, 0, loc), 3)
	if err != nil {
		t.Fatalf("Upcoming error: %v", err)
	}
	want := []time.Time{
		time.Date(2024, 5, 12, 8, 0, 0, 0, loc),
		time.Date(2024, 5, 14, 8, 0, 0, 0, loc),
		time.Date(2024, 5, 16, 8, 0, 0, 0, loc),
	}
	if len(got) != len(want) {
		t.Fatalf("Upcoming returned %d instants, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("Upcoming[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
