package handlers

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/hray3182/HabitLine/internal/format"
	"github.com/hray3182/HabitLine/internal/habits"
	"github.com/hray3182/HabitLine/internal/repository"
)

// Sender is the subset of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Handlers struct {
	api    Sender
	users  repository.UserStore
	habits *habits.Service
	loc    *time.Location
	log    zerolog.Logger
}

func New(api Sender, users repository.UserStore, habitService *habits.Service, loc *time.Location, log zerolog.Logger) *Handlers {
	if loc == nil {
		loc = time.Local
	}
	return &Handlers{
		api:    api,
		users:  users,
		habits: habitService,
		loc:    loc,
		log:    log.With().Str("comp", "handlers").Logger(),
	}
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	// Ensure user exists
	if _, err := h.users.GetOrCreate(ctx, msg.From.ID, msg.From.UserName); err != nil {
		h.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("failed to get/create user")
		return
	}

	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "habits":
		h.handleHabitList(ctx, msg)
	case "habit":
		h.handleHabitCreate(ctx, msg, false)
	case "nice":
		h.handleHabitCreate(ctx, msg, true)
	case "delete":
		h.handleHabitDelete(ctx, msg)
	default:
		h.sendMessage(msg.Chat.ID, "Unknown command, see /help")
	}
}

// sendMessage sends fixed bot text written in the Markdown subset. Text that
// contains user input goes through sendPlain or sendResult instead.
func (h *Handlers) sendMessage(chatID int64, text string) {
	h.sendResult(chatID, format.ParseMarkdown(text))
}

func (h *Handlers) sendPlain(chatID int64, text string) {
	h.sendResult(chatID, format.ParseResult{Text: text})
}

func (h *Handlers) sendResult(chatID int64, res format.ParseResult) {
	msg := tgbotapi.NewMessage(chatID, res.Text)
	msg.Entities = res.Entities
	if _, err := h.api.Send(msg); err != nil {
		h.log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	if err := h.users.SetTelegramChatID(ctx, msg.From.ID, msg.Chat.ID); err != nil {
		h.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("failed to register chat")
		h.sendMessage(msg.Chat.ID, "Could not register this chat, please try again later")
		return
	}
	h.log.Info().Int64("user_id", msg.From.ID).Int64("chat_id", msg.Chat.ID).Msg("chat registered")

	text := fmt.Sprintf(`👋 Hi %s!

I am **HabitLine**. I remind you of your habits at the time you picked, every N days, and tell you what you get afterwards.

Reminders for your habits will arrive in this chat.

Use /help to see all commands`, msg.From.FirstName)
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	text := `📖 **Commands**

/habits - list your habits
/habit ` + "`HH:MM | place | action | seconds | days | reward or #id`" + ` - add a useful habit
/nice ` + "`HH:MM | place | action | seconds | days`" + ` - add a pleasant habit
/delete ` + "`id`" + ` - delete a habit

A useful habit is reinforced by either a reward or a pleasant habit (#id), never both.
Durations are 1-120 seconds, periodicity is 1-7 days.`
	h.sendMessage(msg.Chat.ID, text)
}
