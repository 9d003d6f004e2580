package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-modbot/internal/bot"
	"github.com/tbourn/go-modbot/internal/game"
	"github.com/tbourn/go-modbot/internal/utils"
)

const (
	rollPrefix     = "roll:"
	rollStopPrefix = "stop:"
)

// eventToken is the compact form of an event id used in button data.
func eventToken(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}

func rollKeyboard(id uuid.UUID) bot.Keyboard {
	tok := eventToken(id)
	return bot.Keyboard{
		{{Text: "🎲 Roll", Data: rollPrefix + tok}},
		{{Text: "⏹ Stop", Data: rollStopPrefix + tok}},
	}
}

// rollText renders the whole event message.
func rollText(ev game.RollEvent, now time.Time, finished bool) string {
	return fmt.Sprintf("🎲 *Dice roll!* Press the button, the highest roll wins.\n\n%s",
		game.RenderLeaderboard(ev, now, finished))
}

func (h *Handlers) handleRollStart(ctx context.Context, u bot.Update) error {
	msg := u.Message
	if !msg.Chat.IsGroup() {
		h.reply(ctx, msg.Chat.ID, "Dice rolls are held in groups.")
		return nil
	}

	var d time.Duration
	if args := commandArgs(msg.Text, h.Username); len(args) > 0 {
		d = time.Duration(utils.AtoiDefault(args[0], 0)) * time.Minute
	}
	d = h.Rolls.ClampDuration(d)

	id := h.Rolls.CreateEvent(msg.Chat.ID, msg.From.ID, d)
	ev, ok := h.Rolls.TryGetEvent(id)
	if !ok {
		return nil
	}
	msgID, err := h.Client.Send(ctx, msg.Chat.ID, rollText(ev, h.now(), false), bot.Markdown(rollKeyboard(id)))
	if err != nil {
		h.Rolls.StopEvent(id)
		return fmt.Errorf("announce roll: %w", err)
	}
	h.Rolls.SetMessageID(id, msgID)
	return nil
}

func (h *Handlers) handleRollButton(ctx context.Context, u bot.Update) error {
	cb := u.Callback
	stop := strings.HasPrefix(cb.Data, rollStopPrefix)
	tok := strings.TrimPrefix(strings.TrimPrefix(cb.Data, rollPrefix), rollStopPrefix)
	id, err := uuid.Parse(tok)
	if err != nil {
		h.answer(ctx, cb, "Malformed request.", false)
		return ErrBadCallbackData
	}
	if stop {
		return h.stopRoll(ctx, cb, id)
	}

	value, first, ok := h.Rolls.TryRoll(id, cb.From.ID, cb.From.DisplayName())
	if !ok {
		h.answer(ctx, cb, "This roll is over.", false)
		return nil
	}
	if !first {
		h.answer(ctx, cb, fmt.Sprintf("You already rolled %d.", value), false)
		return nil
	}
	h.answer(ctx, cb, fmt.Sprintf("🎲 You rolled %d!", value), false)

	_, err = h.Rolls.WithEditLock(id, func(ev game.RollEvent) error {
		return h.Client.EditText(ctx, ev.ChatID, ev.MessageID, rollText(ev, h.now(), false), bot.Markdown(rollKeyboard(id)))
	})
	if err != nil {
		return fmt.Errorf("refresh leaderboard: %w", err)
	}
	return nil
}

func (h *Handlers) stopRoll(ctx context.Context, cb *bot.Callback, id uuid.UUID) error {
	ev, ok := h.Rolls.TryGetEvent(id)
	if !ok {
		h.answer(ctx, cb, "This roll is over.", false)
		return nil
	}
	if ev.HostID != cb.From.ID {
		h.answer(ctx, cb, "Only the host can stop the roll.", true)
		return nil
	}
	final, ok := h.Rolls.StopEvent(id)
	if !ok {
		h.answer(ctx, cb, "This roll is over.", false)
		return nil
	}
	h.answer(ctx, cb, "Roll stopped.", false)
	return h.publishFinal(ctx, final)
}

// publishFinal shows the final board without buttons, posting a new
// message when the event never got one.
func (h *Handlers) publishFinal(ctx context.Context, ev game.RollEvent) error {
	text := rollText(ev, h.now(), true)
	if ev.MessageID == 0 {
		_, err := h.Client.Send(ctx, ev.ChatID, text, bot.Markdown(nil))
		return err
	}
	return h.Client.EditText(ctx, ev.ChatID, ev.MessageID, text, bot.Markdown(nil))
}
