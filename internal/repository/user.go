package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hray3182/HabitLine/internal/database"
	"github.com/hray3182/HabitLine/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64, userName string) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO "user" (user_id, user_name) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET user_name = EXCLUDED.user_name
		 RETURNING user_id, user_name, telegram_chat_id, created_at`,
		userID, userName,
	).Scan(&user.UserID, &user.UserName, &user.TelegramChatID, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT user_id, user_name, telegram_chat_id, created_at FROM "user" WHERE user_id = $1`,
		userID,
	).Scan(&user.UserID, &user.UserName, &user.TelegramChatID, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return user, nil
}

func (r *UserRepository) SetTelegramChatID(ctx context.Context, userID int64, chatID int64) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE "user" SET telegram_chat_id = $1 WHERE user_id = $2`, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to set telegram chat for user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
