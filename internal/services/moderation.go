package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-modbot/internal/bot"
	"github.com/tbourn/go-modbot/internal/game"
)

const (
	reasonFlood = "please do not flood"
	reasonLinks = "links are not allowed in this chat"
)

func (h *Handlers) handleSpam(ctx context.Context, u bot.Update) error {
	msg := u.Message
	cs, err := h.Settings.Get(ctx, msg.Chat.ID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !cs.SpamProtectionEnabled {
		return nil
	}
	if !h.Flood.AddAndCheck(msg.Chat.ID, msg.From.ID) {
		return nil
	}

	n, err := h.Warnings.Add(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		return fmt.Errorf("add warning: %w", err)
	}
	return h.escalate(ctx, msg.Chat.ID, *msg.From, n, reasonFlood)
}

func (h *Handlers) handleLinks(ctx context.Context, u bot.Update) error {
	msg := u.Message
	cs, err := h.Settings.Get(ctx, msg.Chat.ID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if cs.LinksAllowed {
		return nil
	}
	admin, err := h.isAdmin(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}

	if err := h.Client.Delete(ctx, msg.Chat.ID, msg.ID); err != nil {
		return fmt.Errorf("delete link message: %w", err)
	}
	moderationActions.WithLabelValues("delete").Inc()

	n, err := h.Warnings.Add(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		return fmt.Errorf("add warning: %w", err)
	}
	return h.escalate(ctx, msg.Chat.ID, *msg.From, n, reasonLinks)
}

// escalate tells the user about warning n and mutes them once the count
// reaches WarnMax. Administrators are only reminded.
func (h *Handlers) escalate(ctx context.Context, chatID int64, user bot.User, n int, reason string) error {
	limit := h.Moderation.WarnMax
	who := game.Mention(user.ID, user.DisplayName())

	if n < limit {
		h.reply(ctx, chatID, fmt.Sprintf("⚠️ %s, %s. Warning %d/%d.", who, reason, n, limit))
		return nil
	}

	admin, err := h.isAdmin(ctx, chatID, user.ID)
	if err != nil {
		return err
	}
	if admin {
		h.reply(ctx, chatID, fmt.Sprintf("%s, you have %d/%d warnings. Administrators are not muted, but please set an example.", who, n, limit))
		return nil
	}

	until := h.now().Add(h.Moderation.MuteDuration)
	if err := h.Client.RestrictUntil(ctx, chatID, user.ID, until); err != nil {
		return fmt.Errorf("mute user: %w", err)
	}
	moderationActions.WithLabelValues("mute").Inc()
	log.Info().Int64("chat_id", chatID).Int64("user_id", user.ID).Int("warnings", n).Msg("user muted")

	h.reply(ctx, chatID, fmt.Sprintf("🔇 %s is muted for %s after %d/%d warnings.",
		who, humanDuration(h.Moderation.MuteDuration), n, limit))
	return nil
}
