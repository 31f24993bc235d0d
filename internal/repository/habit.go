package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hray3182/HabitLine/internal/database"
	"github.com/hray3182/HabitLine/internal/models"
)

const habitColumns = `habit_id, user_id, place, action, time_of_day::text, duration_seconds, periodicity_days,
	is_nice_habit, related_habit_id, reward, is_public, last_notified_at, created_at`

// SQLSTATE foreign_key_violation
const foreignKeyViolation = "23503"

type HabitRepository struct {
	db *database.DB
}

func NewHabitRepository(db *database.DB) *HabitRepository {
	return &HabitRepository{db: db}
}

func scanHabit(row pgx.Row) (*models.Habit, error) {
	habit := &models.Habit{}
	var tod string
	if err := row.Scan(&habit.HabitID, &habit.UserID, &habit.Place, &habit.Action, &tod,
		&habit.DurationSeconds, &habit.PeriodicityDays, &habit.IsNiceHabit, &habit.RelatedHabitID,
		&habit.Reward, &habit.IsPublic, &habit.LastNotifiedAt, &habit.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := models.ParseTimeOfDay(tod)
	if err != nil {
		return nil, err
	}
	habit.TimeOfDay = parsed
	return habit, nil
}

func (r *HabitRepository) query(ctx context.Context, sql string, args ...any) ([]*models.Habit, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []*models.Habit
	for rows.Next() {
		habit, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}
	return habits, rows.Err()
}

func (r *HabitRepository) ListHabits(ctx context.Context) ([]*models.Habit, error) {
	return r.query(ctx, `SELECT `+habitColumns+` FROM habit ORDER BY habit_id`)
}

func (r *HabitRepository) ListHabitsByUser(ctx context.Context, userID int64) ([]*models.Habit, error) {
	return r.query(ctx, `SELECT `+habitColumns+` FROM habit WHERE user_id = $1 ORDER BY time_of_day, habit_id`, userID)
}

func (r *HabitRepository) GetHabit(ctx context.Context, habitID int64) (*models.Habit, error) {
	habit, err := scanHabit(r.db.Pool.QueryRow(ctx,
		`SELECT `+habitColumns+` FROM habit WHERE habit_id = $1`, habitID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit %d: %w", habitID, err)
	}
	return habit, nil
}

func (r *HabitRepository) SaveHabit(ctx context.Context, habit *models.Habit) error {
	if habit.HabitID == 0 {
		return r.db.Pool.QueryRow(ctx,
			`INSERT INTO habit (user_id, place, action, time_of_day, duration_seconds, periodicity_days,
			                    is_nice_habit, related_habit_id, reward, is_public)
			 VALUES ($1, $2, $3, $4::time, $5, $6, $7, $8, $9, $10)
			 RETURNING habit_id, created_at`,
			habit.UserID, habit.Place, habit.Action, habit.TimeOfDay.String(), habit.DurationSeconds,
			habit.PeriodicityDays, habit.IsNiceHabit, habit.RelatedHabitID, habit.Reward, habit.IsPublic,
		).Scan(&habit.HabitID, &habit.CreatedAt)
	}

	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE habit SET place = $1, action = $2, time_of_day = $3::time, duration_seconds = $4,
		        periodicity_days = $5, is_nice_habit = $6, related_habit_id = $7, reward = $8, is_public = $9
		 WHERE habit_id = $10`,
		habit.Place, habit.Action, habit.TimeOfDay.String(), habit.DurationSeconds, habit.PeriodicityDays,
		habit.IsNiceHabit, habit.RelatedHabitID, habit.Reward, habit.IsPublic, habit.HabitID,
	)
	if err != nil {
		return fmt.Errorf("failed to update habit %d: %w", habit.HabitID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *HabitRepository) DeleteHabit(ctx context.Context, habitID int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM habit WHERE habit_id = $1`, habitID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrHabitReferenced
	}
	if err != nil {
		return fmt.Errorf("failed to delete habit %d: %w", habitID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *HabitRepository) CountReferences(ctx context.Context, habitID int64) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM habit WHERE related_habit_id = $1`, habitID,
	).Scan(&n)
	return n, err
}

func (r *HabitRepository) SetLastNotifiedAt(ctx context.Context, habitID int64, at time.Time) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE habit SET last_notified_at = $1 WHERE habit_id = $2`, at, habitID)
	if err != nil {
		return fmt.Errorf("failed to set last_notified_at for habit %d: %w", habitID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
