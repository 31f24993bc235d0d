package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/hray3182/HabitLine/internal/models"
	"github.com/hray3182/HabitLine/internal/repository"
)

// ErrorKind identifies which habit invariant a candidate violated.
type ErrorKind string

const (
	KindMutuallyExclusiveFields          ErrorKind = "mutually_exclusive_fields"
	KindReferenceNotFound                ErrorKind = "reference_not_found"
	KindNicePleasantConstraint           ErrorKind = "nice_pleasant_constraint"
	KindUsefulHabitReinforcementRequired ErrorKind = "useful_habit_reinforcement_required"
	KindDurationOutOfRange               ErrorKind = "duration_out_of_range"
	KindPeriodicityOutOfRange            ErrorKind = "periodicity_out_of_range"
)

// Error is a rejected candidate. Callers surface Message to the user as-is.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a validation error anywhere in err's chain, or "".
func KindOf(err error) ErrorKind {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind
	}
	return ""
}

// HabitLookup resolves a habit by id. Missing habits are reported as repository.ErrNotFound.
type HabitLookup interface {
	GetHabit(ctx context.Context, habitID int64) (*models.Habit, error)
}

// ValidateDuration checks the execution time bound.
func ValidateDuration(seconds int) error {
	if seconds > models.MaxDurationSeconds {
		return newError(KindDurationOutOfRange, "habit duration must be at most %d seconds", models.MaxDurationSeconds)
	}
	if seconds < models.MinDurationSeconds {
		return newError(KindDurationOutOfRange, "habit duration must be greater than zero")
	}
	return nil
}

// ValidatePeriodicity checks the repeat interval bound.
func ValidatePeriodicity(days int) error {
	if days > models.MaxPeriodicityDays {
		return newError(KindPeriodicityOutOfRange, "a habit cannot repeat less often than once every %d days", models.MaxPeriodicityDays)
	}
	if days < models.MinPeriodicityDays {
		return newError(KindPeriodicityOutOfRange, "habit periodicity must be at least %d day", models.MinPeriodicityDays)
	}
	return nil
}

// ValidateHabit runs every invariant against candidate in a fixed order and
// returns the first violation as *Error. A lookup failure other than
// repository.ErrNotFound is returned wrapped and is not an *Error.
func ValidateHabit(ctx context.Context, candidate *models.Habit, lookup HabitLookup) error {
	if err := ValidateDuration(candidate.DurationSeconds); err != nil {
		return err
	}
	if err := ValidatePeriodicity(candidate.PeriodicityDays); err != nil {
		return err
	}

	if candidate.HasRelatedHabit() && candidate.HasReward() {
		return newError(KindMutuallyExclusiveFields, "a habit cannot have both a related habit and a reward")
	}

	if candidate.HasRelatedHabit() && candidate.HabitID != 0 && *candidate.RelatedHabitID == candidate.HabitID {
		return newError(KindNicePleasantConstraint, "a habit cannot be its own related habit")
	}

	if candidate.HasRelatedHabit() {
		related, err := lookup.GetHabit(ctx, *candidate.RelatedHabitID)
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindReferenceNotFound, "related habit %d not found", *candidate.RelatedHabitID)
		}
		if err != nil {
			return fmt.Errorf("failed to look up related habit %d: %w", *candidate.RelatedHabitID, err)
		}
		if !related.IsNiceHabit {
			return newError(KindNicePleasantConstraint, "only pleasant habits can be used as a related habit")
		}
	}

	if candidate.IsNiceHabit && (candidate.HasRelatedHabit() || candidate.HasReward()) {
		return newError(KindNicePleasantConstraint, "a pleasant habit cannot have a related habit or a reward")
	}

	if !candidate.IsNiceHabit && !candidate.HasRelatedHabit() && !candidate.HasReward() {
		return newError(KindUsefulHabitReinforcementRequired, "a useful habit needs either a related pleasant habit or a reward")
	}

	return nil
}
