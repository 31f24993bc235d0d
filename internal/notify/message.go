package notify

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hray3182/HabitLine/internal/format"
	"github.com/hray3182/HabitLine/internal/models"
	"github.com/hray3182/HabitLine/internal/rrule"
)

// Message is reminder text plus the entities that style it. User-entered
// fields are carried as plain spans.
type Message struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

// BuildReminder formats the reminder for h. related is the resolved related
// pleasant habit, or nil.
func BuildReminder(h *models.Habit, related *models.Habit) Message {
	var b format.Builder
	b.Plain("⏰ ").Bold("Time for your habit").Plain("\n\n")

	b.Plain("At ").Code(h.TimeOfDay.String())
	if place := strings.TrimSpace(h.Place); place != "" {
		b.Plain(" in ").Bold(place)
	}
	b.Plain(": ").Plain(strings.TrimSpace(h.Action))
	if h.DurationSeconds > 0 {
		b.Plainf(" (%d s)", h.DurationSeconds)
	}
	b.Plain("\n")

	switch {
	case related != nil:
		b.Plain("\n🎁 Afterwards treat yourself: ").Plain(strings.TrimSpace(related.Action)).Plain("\n")
	case h.HasReward():
		b.Plain("\n🎁 Reward: ").Plain(strings.TrimSpace(h.Reward)).Plain("\n")
	}

	b.Plain("\n🔄 ").Plain(rrule.Describe(rrule.ForHabit(h)))

	res := b.Result()
	return Message{Text: res.Text, Entities: res.Entities}
}
