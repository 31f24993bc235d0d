package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/hray3182/HabitLine/internal/bot/handlers"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	handlers *handlers.Handlers
	log      zerolog.Logger
}

// NewAPI authorizes against the Telegram bot API. The returned client is shared
// by the bot and the reminder provider.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return api, nil
}

func New(api *tgbotapi.BotAPI, h *handlers.Handlers, log zerolog.Logger) *Bot {
	return &Bot{
		api:      api,
		handlers: h,
		log:      log.With().Str("comp", "bot").Logger(),
	}
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	b.log.Info().Str("account", b.api.Self.UserName).Msg("authorized")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	b.handlers.HandleCommand(ctx, update.Message)
}
