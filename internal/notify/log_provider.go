package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogProvider writes reminders to the log instead of delivering them.
type LogProvider struct {
	log zerolog.Logger
}

func NewLogProvider(log zerolog.Logger) *LogProvider {
	return &LogProvider{log: log.With().Str("comp", "log_provider").Logger()}
}

func (p *LogProvider) Send(ctx context.Context, to Contact, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.log.Info().
		Int64("user_id", to.UserID).
		Int64("chat_id", to.ChatID).
		Str("text", msg.Text).
		Msg("reminder (dry run)")
	return nil
}
