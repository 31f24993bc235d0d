package habits

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hray3182/HabitLine/internal/models"
	"github.com/hray3182/HabitLine/internal/repository"
	"github.com/hray3182/HabitLine/internal/validation"
)

// ErrHabitReferenced is returned when deleting a habit other habits relate to.
var ErrHabitReferenced = repository.ErrHabitReferenced

// Notifier is told when habits change so the next tick can run early.
type Notifier interface {
	Notify()
}

// Service is the only write path for habit content. Every create and update
// runs the validator before anything is persisted.
type Service struct {
	store    repository.HabitStore
	notifier Notifier
	log      zerolog.Logger
}

func NewService(store repository.HabitStore, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		log:      log.With().Str("comp", "habits").Logger(),
	}
}

func (s *Service) List(ctx context.Context, userID int64) ([]*models.Habit, error) {
	return s.store.ListHabitsByUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, habitID int64) (*models.Habit, error) {
	return s.store.GetHabit(ctx, habitID)
}

// Create validates and stores a new habit, assigning its id.
func (s *Service) Create(ctx context.Context, habit *models.Habit) error {
	if habit.HabitID != 0 {
		return fmt.Errorf("create habit: id already set (%d)", habit.HabitID)
	}
	habit.LastNotifiedAt = nil
	if err := validation.ValidateHabit(ctx, habit, ownedBy(s.store, habit.UserID)); err != nil {
		return err
	}
	if err := s.store.SaveHabit(ctx, habit); err != nil {
		return fmt.Errorf("failed to save habit: %w", err)
	}

	s.log.Info().Int64("habit_id", habit.HabitID).Int64("user_id", habit.UserID).Msg("habit created")
	s.changed()
	return nil
}

// Update validates and replaces the content of an existing habit. The owner
// and the last notification time are kept from the stored habit.
func (s *Service) Update(ctx context.Context, habit *models.Habit) error {
	existing, err := s.store.GetHabit(ctx, habit.HabitID)
	if err != nil {
		return err
	}
	habit.UserID = existing.UserID
	habit.LastNotifiedAt = existing.LastNotifiedAt

	if err := validation.ValidateHabit(ctx, habit, ownedBy(s.store, habit.UserID)); err != nil {
		return err
	}

	// A habit others relate to must stay pleasant.
	if existing.IsNiceHabit && !habit.IsNiceHabit {
		n, err := s.store.CountReferences(ctx, habit.HabitID)
		if err != nil {
			return fmt.Errorf("failed to count habit references: %w", err)
		}
		if n > 0 {
			return &validation.Error{
				Kind:    validation.KindNicePleasantConstraint,
				Message: fmt.Sprintf("habit is related to by %d habit(s) and must stay pleasant", n),
			}
		}
	}

	if err := s.store.SaveHabit(ctx, habit); err != nil {
		return fmt.Errorf("failed to save habit: %w", err)
	}

	s.log.Info().Int64("habit_id", habit.HabitID).Msg("habit updated")
	s.changed()
	return nil
}

// Delete removes a habit. It fails with ErrHabitReferenced while any other
// habit names it as its related habit; the stores enforce the same rule on
// the delete itself, so a reference created after the count is still caught.
func (s *Service) Delete(ctx context.Context, habitID int64) error {
	n, err := s.store.CountReferences(ctx, habitID)
	if err != nil {
		return fmt.Errorf("failed to count habit references: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("delete habit %d: %w (%d)", habitID, ErrHabitReferenced, n)
	}
	if err := s.store.DeleteHabit(ctx, habitID); err != nil {
		return err
	}
	s.log.Info().Int64("habit_id", habitID).Msg("habit deleted")
	return nil
}

// ownedLookup hides habits of other users, so a habit can only relate to one
// of its owner's habits.
type ownedLookup struct {
	store  repository.HabitStore
	userID int64
}

func ownedBy(store repository.HabitStore, userID int64) ownedLookup {
	return ownedLookup{store: store, userID: userID}
}

func (l ownedLookup) GetHabit(ctx context.Context, habitID int64) (*models.Habit, error) {
	h, err := l.store.GetHabit(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if h.UserID != l.userID {
		return nil, repository.ErrNotFound
	}
	return h, nil
}

func (s *Service) changed() {
	if s.notifier != nil {
		s.notifier.Notify()
	}
}
