package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbourn/go-modbot/internal/bot"
	"github.com/tbourn/go-modbot/internal/domain"
)

const (
	settingsTogglePrefix = "settings:toggle:"
	toggleSpam           = settingsTogglePrefix + "spam"
	toggleLinks          = settingsTogglePrefix + "links"
)

func checkmark(on bool) string {
	if on {
		return "✅"
	}
	return "❌"
}

func settingsKeyboard(cs domain.ChatSettings) bot.Keyboard {
	return bot.Keyboard{
		{{Text: "Spam protection " + checkmark(cs.SpamProtectionEnabled), Data: toggleSpam}},
		{{Text: "Links " + checkmark(cs.LinksAllowed), Data: toggleLinks}},
	}
}

func (h *Handlers) handleSettings(ctx context.Context, u bot.Update) error {
	msg := u.Message
	if !msg.Chat.IsGroup() {
		h.reply(ctx, msg.Chat.ID, "Settings are per group; use /settings inside the group.")
		return nil
	}
	admin, err := h.isAdmin(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		return err
	}
	if !admin {
		h.reply(ctx, msg.Chat.ID, "Only administrators can change settings.")
		return nil
	}

	cs, err := h.Settings.Get(ctx, msg.Chat.ID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if _, err := h.Client.Send(ctx, msg.Chat.ID, "⚙️ Chat settings", bot.Markdown(settingsKeyboard(cs))); err != nil {
		return fmt.Errorf("send settings: %w", err)
	}
	return nil
}

func (h *Handlers) handleSettingsToggle(ctx context.Context, u bot.Update) error {
	cb := u.Callback
	if cb.Message == nil {
		return ErrNoMessage
	}
	chatID := cb.Message.Chat.ID

	admin, err := h.isAdmin(ctx, chatID, cb.From.ID)
	if err != nil {
		h.answer(ctx, cb, "Could not verify your rights, try again.", true)
		return err
	}
	if !admin {
		h.answer(ctx, cb, "Only administrators can change settings.", true)
		return nil
	}

	var (
		cs    domain.ChatSettings
		label string
		on    bool
	)
	switch strings.TrimPrefix(cb.Data, settingsTogglePrefix) {
	case "spam":
		cs, err = h.Settings.ToggleSpam(ctx, chatID)
		label, on = "Spam protection", cs.SpamProtectionEnabled
	case "links":
		cs, err = h.Settings.ToggleLinks(ctx, chatID)
		label, on = "Links", cs.LinksAllowed
	default:
		h.answer(ctx, cb, "Unknown setting.", false)
		return ErrBadCallbackData
	}
	if err != nil {
		h.answer(ctx, cb, "Could not save the setting.", true)
		return fmt.Errorf("toggle setting: %w", err)
	}

	if err := h.Client.EditMarkup(ctx, chatID, cb.Message.ID, settingsKeyboard(cs)); err != nil {
		h.answer(ctx, cb, "Saved.", false)
		return fmt.Errorf("refresh settings keyboard: %w", err)
	}
	state := "off"
	if on {
		state = "on"
	}
	h.answer(ctx, cb, label+": "+state, false)
	return nil
}
