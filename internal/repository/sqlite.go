package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hray3182/HabitLine/internal/models"
)

// SQLite timestamps are stored as unix milliseconds.

const sqliteHabitColumns = `habit_id, user_id, place, action, time_of_day, duration_seconds, periodicity_days,
	is_nice_habit, related_habit_id, reward, is_public, last_notified_at, created_at`

type SQLiteHabitRepository struct {
	db *sql.DB
}

func NewSQLiteHabitRepository(db *sql.DB) *SQLiteHabitRepository {
	return &SQLiteHabitRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteHabit(row rowScanner) (*models.Habit, error) {
	habit := &models.Habit{}
	var (
		tod       string
		related   sql.NullInt64
		notified  sql.NullInt64
		createdMS int64
	)
	if err := row.Scan(&habit.HabitID, &habit.UserID, &habit.Place, &habit.Action, &tod,
		&habit.DurationSeconds, &habit.PeriodicityDays, &habit.IsNiceHabit, &related,
		&habit.Reward, &habit.IsPublic, &notified, &createdMS); err != nil {
		return nil, err
	}
	parsed, err := models.ParseTimeOfDay(tod)
	if err != nil {
		return nil, err
	}
	habit.TimeOfDay = parsed
	if related.Valid {
		id := related.Int64
		habit.RelatedHabitID = &id
	}
	if notified.Valid {
		at := time.UnixMilli(notified.Int64)
		habit.LastNotifiedAt = &at
	}
	habit.CreatedAt = time.UnixMilli(createdMS)
	return habit, nil
}

func (r *SQLiteHabitRepository) query(ctx context.Context, query string, args ...any) ([]*models.Habit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []*models.Habit
	for rows.Next() {
		habit, err := scanSQLiteHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}
	return habits, rows.Err()
}

func (r *SQLiteHabitRepository) ListHabits(ctx context.Context) ([]*models.Habit, error) {
	return r.query(ctx, `SELECT `+sqliteHabitColumns+` FROM habit ORDER BY habit_id`)
}

func (r *SQLiteHabitRepository) ListHabitsByUser(ctx context.Context, userID int64) ([]*models.Habit, error) {
	return r.query(ctx, `SELECT `+sqliteHabitColumns+` FROM habit WHERE user_id = ? ORDER BY time_of_day, habit_id`, userID)
}

func (r *SQLiteHabitRepository) GetHabit(ctx context.Context, habitID int64) (*models.Habit, error) {
	habit, err := scanSQLiteHabit(r.db.QueryRowContext(ctx,
		`SELECT `+sqliteHabitColumns+` FROM habit WHERE habit_id = ?`, habitID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit %d: %w", habitID, err)
	}
	return habit, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func (r *SQLiteHabitRepository) SaveHabit(ctx context.Context, habit *models.Habit) error {
	if habit.HabitID == 0 {
		created := time.Now()
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO habit (user_id, place, action, time_of_day, duration_seconds, periodicity_days,
			                    is_nice_habit, related_habit_id, reward, is_public, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			habit.UserID, habit.Place, habit.Action, habit.TimeOfDay.String(), habit.DurationSeconds,
			habit.PeriodicityDays, habit.IsNiceHabit, nullableID(habit.RelatedHabitID), habit.Reward,
			habit.IsPublic, created.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert habit: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		habit.HabitID = id
		habit.CreatedAt = time.UnixMilli(created.UnixMilli())
		return nil
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE habit SET place = ?, action = ?, time_of_day = ?, duration_seconds = ?, periodicity_days = ?,
		        is_nice_habit = ?, related_habit_id = ?, reward = ?, is_public = ?
		 WHERE habit_id = ?`,
		habit.Place, habit.Action, habit.TimeOfDay.String(), habit.DurationSeconds, habit.PeriodicityDays,
		habit.IsNiceHabit, nullableID(habit.RelatedHabitID), habit.Reward, habit.IsPublic, habit.HabitID,
	)
	if err != nil {
		return fmt.Errorf("failed to update habit %d: %w", habit.HabitID, err)
	}
	return requireAffected(res)
}

func (r *SQLiteHabitRepository) DeleteHabit(ctx context.Context, habitID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM habit WHERE habit_id = ?`, habitID)
	if isSQLiteForeignKeyViolation(err) {
		return ErrHabitReferenced
	}
	if err != nil {
		return fmt.Errorf("failed to delete habit %d: %w", habitID, err)
	}
	return requireAffected(res)
}

func (r *SQLiteHabitRepository) CountReferences(ctx context.Context, habitID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM habit WHERE related_habit_id = ?`, habitID,
	).Scan(&n)
	return n, err
}

func (r *SQLiteHabitRepository) SetLastNotifiedAt(ctx context.Context, habitID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE habit SET last_notified_at = ? WHERE habit_id = ?`, at.UnixMilli(), habitID)
	if err != nil {
		return fmt.Errorf("failed to set last_notified_at for habit %d: %w", habitID, err)
	}
	return requireAffected(res)
}

func isSQLiteForeignKeyViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	// Primary or extended (SQLITE_CONSTRAINT_FOREIGNKEY) result code.
	return serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(serr.Error(), "FOREIGN KEY")
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type SQLiteUserRepository struct {
	db *sql.DB
}

func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

func scanSQLiteUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var (
		chat      sql.NullInt64
		createdMS int64
	)
	if err := row.Scan(&user.UserID, &user.UserName, &chat, &createdMS); err != nil {
		return nil, err
	}
	if chat.Valid {
		id := chat.Int64
		user.TelegramChatID = &id
	}
	user.CreatedAt = time.UnixMilli(createdMS)
	return user, nil
}

func (r *SQLiteUserRepository) GetOrCreate(ctx context.Context, userID int64, userName string) (*models.User, error) {
	return scanSQLiteUser(r.db.QueryRowContext(ctx,
		`INSERT INTO user (user_id, user_name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET user_name = excluded.user_name
		 RETURNING user_id, user_name, telegram_chat_id, created_at`,
		userID, userName, time.Now().UnixMilli(),
	))
}

func (r *SQLiteUserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	user, err := scanSQLiteUser(r.db.QueryRowContext(ctx,
		`SELECT user_id, user_name, telegram_chat_id, created_at FROM user WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return user, nil
}

func (r *SQLiteUserRepository) SetTelegramChatID(ctx context.Context, userID int64, chatID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user SET telegram_chat_id = ? WHERE user_id = ?`, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to set telegram chat for user %d: %w", userID, err)
	}
	return requireAffected(res)
}
