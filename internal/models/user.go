package models

import "time"

type User struct {
	UserID         int64     `json:"user_id"`
	UserName       string    `json:"user_name"`
	TelegramChatID *int64    `json:"telegram_chat_id"` // nil until the user sends /start
	CreatedAt      time.Time `json:"created_at"`
}
