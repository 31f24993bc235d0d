package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type fakeBot struct {
	err  error
	sent []tgbotapi.MessageConfig
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m)
	}
	return tgbotapi.Message{MessageID: 1}, b.err
}

func TestTelegramProviderSendsEntities(t *testing.T) {
	bot := &fakeBot{}
	p := NewTelegramProvider(bot)

	msg := Message{Text: "hi there", Entities: []tgbotapi.MessageEntity{{Type: "bold", Offset: 0, Length: 2}}}
	if err := p.Send(context.Background(), Contact{ChatID: 99}, msg); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(bot.sent))
	}
	m := bot.sent[0]
	if m.ChatID != 99 || m.Text != "hi there" || len(m.Entities) != 1 || m.Entities[0].Type != "bold" {
		t.Fatalf("sent message = %+v", m)
	}
}

func TestTelegramProviderMissingChat(t *testing.T) {
	err := NewTelegramProvider(&fakeBot{}).Send(context.Background(), Contact{UserID: 1}, Message{Text: "x"})
	if !IsPermanent(err) {
		t.Fatalf("error = %v, want permanent", err)
	}
}

func TestClassifyTelegramError(t *testing.T) {
	tooMany := &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}
	tooMany.RetryAfter = 3

	tests := []struct {
		name       string
		err        error
		permanent  bool
		retryAfter time.Duration
	}{
		{name: "rate limited", err: tooMany, retryAfter: 3 * time.Second},
		{name: "blocked", err: &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}, permanent: true},
		{name: "chat not found", err: &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, permanent: true},
		{name: "server error", err: &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}},
		{name: "network", err: errors.New("dial tcp: i/o timeout")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTelegramError(tt.err)
			if IsPermanent(got) != tt.permanent {
				t.Fatalf("IsPermanent = %v, want %v", IsPermanent(got), tt.permanent)
			}
			if ra := retryAfter(got); ra != tt.retryAfter {
				t.Fatalf("retryAfter = %v, want %v", ra, tt.retryAfter)
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("classified error does not wrap the original")
			}
		})
	}
}

func TestLogProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogProvider(zerolog.New(&buf))
	if err := p.Send(context.Background(), Contact{UserID: 1, ChatID: 2}, Message{Text: "walk now"}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if !strings.Contains(buf.String(), `"text":"walk now"`) {
		t.Fatalf("log output = %s", buf.String())
	}
}
