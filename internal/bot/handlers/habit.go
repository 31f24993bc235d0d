package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hray3182/HabitLine/internal/format"
	"github.com/hray3182/HabitLine/internal/habits"
	"github.com/hray3182/HabitLine/internal/models"
	"github.com/hray3182/HabitLine/internal/repository"
	"github.com/hray3182/HabitLine/internal/rrule"
	"github.com/hray3182/HabitLine/internal/validation"
)

func (h *Handlers) handleHabitList(ctx context.Context, msg *tgbotapi.Message) {
	list, err := h.habits.List(ctx, msg.From.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("failed to list habits")
		h.sendMessage(msg.Chat.ID, "Could not load your habits, please try again later")
		return
	}
	if len(list) == 0 {
		h.sendMessage(msg.Chat.ID, "📋 No habits yet. Add one with /habit or /nice")
		return
	}
	h.sendResult(msg.Chat.ID, renderHabitList(list, time.Now().In(h.loc)))
}

func renderHabitList(list []*models.Habit, now time.Time) format.ParseResult {
	var b format.Builder
	b.Plain("📋 ").Bold("Your habits").Plain("\n\n")
	for _, hb := range list {
		icon := "💪"
		if hb.IsNiceHabit {
			icon = "🌿"
		}
		b.Plain(icon+" ").Bold(fmt.Sprintf("%d.", hb.HabitID)).
			Plain(" "+hb.Action+" in "+hb.Place).
			Plainf(" (%d s)\n", hb.DurationSeconds)
		switch {
		case hb.HasRelatedHabit():
			b.Plainf("   🎁 then habit #%d\n", *hb.RelatedHabitID)
		case hb.HasReward():
			b.Plain("   🎁 " + hb.Reward + "\n")
		}
		b.Plain("   🔄 " + rrule.Describe(rrule.ForHabit(hb)) + "\n")
		b.Plain("   ⏭ ").Code(hb.NextReminder(now).Format("2006-01-02 15:04")).Plain("\n\n")
	}
	return b.Result()
}

func (h *Handlers) handleHabitCreate(ctx context.Context, msg *tgbotapi.Message, nice bool) {
	habit, err := parseHabitArgs(msg.CommandArguments(), nice)
	if err != nil {
		h.sendPlain(msg.Chat.ID, "❌ "+err.Error()+"\nSee /help for the format")
		return
	}
	habit.UserID = msg.From.ID

	if err := h.habits.Create(ctx, habit); err != nil {
		h.replyError(msg.Chat.ID, "create habit", err)
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Habit **#%d** saved\n🔄 %s",
		habit.HabitID, rrule.Describe(rrule.ForHabit(habit))))
}

func (h *Handlers) handleHabitDelete(ctx context.Context, msg *tgbotapi.Message) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(msg.CommandArguments()), "#"), 10, 64)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Usage: /delete `id`")
		return
	}

	habit, err := h.habits.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && habit.UserID != msg.From.ID) {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("❌ Habit #%d not found", id))
		return
	}
	if err != nil {
		h.replyError(msg.Chat.ID, "load habit", err)
		return
	}

	if err := h.habits.Delete(ctx, id); err != nil {
		h.replyError(msg.Chat.ID, "delete habit", err)
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("🗑 Habit #%d deleted", id))
}

func (h *Handlers) replyError(chatID int64, op string, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		h.sendPlain(chatID, "❌ "+verr.Message)
	case errors.Is(err, habits.ErrHabitReferenced):
		h.sendMessage(chatID, "❌ Other habits use this one as their pleasant habit. Change or delete them first")
	default:
		h.log.Error().Err(err).Str("op", op).Msg("habit operation failed")
		h.sendMessage(chatID, "Something went wrong, please try again later")
	}
}

// parseHabitArgs reads "HH:MM | place | action | seconds | days [| reward or #id]".
// The reinforcement part is only accepted for useful habits.
func parseHabitArgs(args string, nice bool) (*models.Habit, error) {
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	want := "5 or 6"
	if nice {
		want = "5"
	}
	if len(parts) < 5 || len(parts) > 6 || (nice && len(parts) != 5) {
		return nil, fmt.Errorf("expected %s fields separated by |, got %d", want, len(parts))
	}

	tod, err := models.ParseTimeOfDay(parts[0])
	if err != nil {
		return nil, fmt.Errorf("bad time %q, use HH:MM", parts[0])
	}
	if parts[2] == "" {
		return nil, errors.New("action is required")
	}
	seconds, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, fmt.Errorf("bad duration %q, use whole seconds", parts[3])
	}
	days, err := strconv.Atoi(parts[4])
	if err != nil {
		return nil, fmt.Errorf("bad periodicity %q, use whole days", parts[4])
	}

	habit := &models.Habit{
		Place:           parts[1],
		Action:          parts[2],
		TimeOfDay:       tod,
		DurationSeconds: seconds,
		PeriodicityDays: days,
		IsNiceHabit:     nice,
	}
	if len(parts) == 6 {
		reinforcement := parts[5]
		if ref, ok := strings.CutPrefix(reinforcement, "#"); ok {
			id, err := strconv.ParseInt(ref, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad habit reference %q", reinforcement)
			}
			habit.RelatedHabitID = &id
		} else {
			habit.Reward = reinforcement
		}
	}
	return habit, nil
}
