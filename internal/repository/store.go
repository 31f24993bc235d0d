package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hray3182/HabitLine/internal/models"
)

// ErrNotFound is returned when a habit or user does not exist.
var ErrNotFound = errors.New("not found")

// ErrHabitReferenced is returned by DeleteHabit while another habit names the
// habit as its related habit.
var ErrHabitReferenced = errors.New("habit is referenced by other habits")

// HabitStore is the persistence surface the habit service and the scheduler depend on.
type HabitStore interface {
	ListHabits(ctx context.Context) ([]*models.Habit, error)
	ListHabitsByUser(ctx context.Context, userID int64) ([]*models.Habit, error)
	GetHabit(ctx context.Context, habitID int64) (*models.Habit, error)
	// SaveHabit inserts when HabitID is zero and updates content fields otherwise.
	// It never writes LastNotifiedAt.
	SaveHabit(ctx context.Context, habit *models.Habit) error
	// DeleteHabit fails with ErrHabitReferenced while other habits relate to habitID.
	DeleteHabit(ctx context.Context, habitID int64) error
	// CountReferences counts habits whose related habit is habitID.
	CountReferences(ctx context.Context, habitID int64) (int, error)
	SetLastNotifiedAt(ctx context.Context, habitID int64, at time.Time) error
}

type UserStore interface {
	GetByID(ctx context.Context, userID int64) (*models.User, error)
	GetOrCreate(ctx context.Context, userID int64, userName string) (*models.User, error)
	SetTelegramChatID(ctx context.Context, userID int64, chatID int64) error
}
