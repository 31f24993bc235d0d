package notify

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the subset of *tgbotapi.BotAPI the provider uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramProvider sends reminders as Telegram messages.
type TelegramProvider struct {
	api TelegramSender
}

func NewTelegramProvider(api TelegramSender) *TelegramProvider {
	return &TelegramProvider{api: api}
}

func (p *TelegramProvider) Send(ctx context.Context, to Contact, msg Message) error {
	if to.ChatID == 0 {
		return &ProviderError{Err: errors.New("contact has no telegram chat"), Permanent: true}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := tgbotapi.NewMessage(to.ChatID, msg.Text)
	out.Entities = msg.Entities

	// The bot API client takes no context; give up waiting when ctx ends and
	// let the HTTP client's own timeout reclaim the request.
	done := make(chan error, 1)
	go func() {
		_, err := p.api.Send(out)
		done <- err
	}()

	select {
	case err := <-done:
		return classifyTelegramError(err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func classifyTelegramError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		// Network failures and timeouts.
		return &ProviderError{Err: err}
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return &ProviderError{Err: err, RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second}
	case apiErr.Code >= 500:
		return &ProviderError{Err: err}
	case apiErr.Code >= 400:
		// Chat not found, bot blocked by the user, malformed payload, bad token.
		return &ProviderError{Err: err, Permanent: true}
	default:
		return &ProviderError{Err: err}
	}
}
