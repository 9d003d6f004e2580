package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-modbot/internal/bot"
	"github.com/tbourn/go-modbot/internal/domain"
	"github.com/tbourn/go-modbot/internal/game"
)

const complaintPrefix = "compl:"

// complaintData encodes one resolution button:
// compl:{chatID}:{messageID}:{targetUserID}:{action}.
func complaintData(k domain.ComplaintKey, a domain.ComplaintAction) string {
	return fmt.Sprintf("%s%d:%d:%d:%s", complaintPrefix, k.SourceChatID, k.SourceMessageID, k.TargetUserID, a)
}

func parseComplaintData(data string) (domain.ComplaintKey, domain.ComplaintAction, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 5 || parts[0]+":" != complaintPrefix {
		return domain.ComplaintKey{}, "", ErrBadCallbackData
	}
	chatID, err1 := strconv.ParseInt(parts[1], 10, 64)
	msgID, err2 := strconv.Atoi(parts[2])
	target, err3 := strconv.ParseInt(parts[3], 10, 64)
	action, ok := domain.ParseComplaintAction(parts[4])
	if err := errors.Join(err1, err2, err3); err != nil || !ok {
		return domain.ComplaintKey{}, "", ErrBadCallbackData
	}
	return domain.ComplaintKey{SourceChatID: chatID, SourceMessageID: msgID, TargetUserID: target}, action, nil
}

func complaintKeyboard(k domain.ComplaintKey) bot.Keyboard {
	return bot.Keyboard{
		{
			{Text: "🔇 Mute 30 min", Data: complaintData(k, domain.ActionMute30)},
			{Text: "⛔ Ban", Data: complaintData(k, domain.ActionBan)},
		},
		{{Text: "🙈 Ignore", Data: complaintData(k, domain.ActionIgnore)}},
	}
}

func actionLabel(a domain.ComplaintAction) string {
	switch a {
	case domain.ActionMute30:
		return "muted"
	case domain.ActionBan:
		return "banned"
	}
	return "ignored"
}

func (h *Handlers) handleReport(ctx context.Context, u bot.Update) error {
	msg := u.Message
	if !msg.Chat.IsGroup() {
		h.reply(ctx, msg.Chat.ID, "Reports only work in group chats.")
		return nil
	}
	if len(commandArgs(msg.Text, h.Username)) > 0 {
		return nil
	}
	chatID, reporter := msg.Chat.ID, *msg.From

	target := msg.ReplyTo
	if target == nil || target.From == nil {
		h.reply(ctx, chatID, "Reply to the offending message with !report.")
		return nil
	}
	if target.From.ID == reporter.ID {
		h.reply(ctx, chatID, "You cannot report yourself.")
		return nil
	}

	if ok, wait := h.Throttle.TryCheckAndSet(chatID, reporter.ID, h.Moderation.ReportThrottle); !ok {
		h.reply(ctx, chatID, fmt.Sprintf("%s, you can send the next report in %d s.",
			game.Mention(reporter.ID, reporter.DisplayName()), wait))
		return nil
	}

	admins, err := h.Client.Admins(ctx, chatID)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	key := domain.ComplaintKey{SourceChatID: chatID, SourceMessageID: target.ID, TargetUserID: target.From.ID}
	text := fmt.Sprintf("📣 Report in *%s*\nFrom: %s\nAbout: %s\n\nThe reported message follows.",
		escapeMarkdown(msg.Chat.Name()),
		game.Mention(reporter.ID, reporter.DisplayName()),
		game.Mention(target.From.ID, target.From.DisplayName()))
	kb := complaintKeyboard(key)

	delivered := 0
	for _, a := range admins {
		if a.User.IsBot {
			continue
		}
		// Admins who never opened a private chat with the bot cannot be reached.
		if _, err := h.Client.Send(ctx, a.User.ID, text, bot.Markdown(kb)); err != nil {
			log.Debug().Err(err).Int64("user_id", a.User.ID).Msg("admin not reachable")
			continue
		}
		if err := h.Client.Forward(ctx, a.User.ID, chatID, target.ID); err != nil {
			log.Debug().Err(err).Int64("user_id", a.User.ID).Msg("forward failed")
		}
		delivered++
	}

	if err := h.Client.Delete(ctx, chatID, msg.ID); err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("report command not deleted")
	}
	if delivered == 0 {
		h.reply(ctx, chatID, "No administrator could be reached.")
		return nil
	}
	h.reply(ctx, chatID, "✅ The report was sent to the administrators.")
	return nil
}

func (h *Handlers) handleComplaint(ctx context.Context, u bot.Update) error {
	cb := u.Callback
	key, action, err := parseComplaintData(cb.Data)
	if err != nil {
		h.answer(ctx, cb, "Malformed request.", true)
		return err
	}

	admin, err := h.isAdmin(ctx, key.SourceChatID, cb.From.ID)
	if err != nil {
		h.answer(ctx, cb, "Could not verify your rights, try again.", true)
		return err
	}
	if !admin {
		h.answer(ctx, cb, "You are no longer an administrator of that chat.", true)
		return nil
	}

	if rec, ok := h.Ledger.TryGet(key); ok {
		h.answerProcessed(ctx, cb, rec)
		return nil
	}

	info := domain.ProcessedComplaint{
		Action:     action,
		AdminID:    cb.From.ID,
		AdminName:  cb.From.DisplayName(),
		ResolvedAt: h.now(),
	}
	added, err := h.Ledger.TryAdd(key, info, h.Moderation.ProcessedRetention)
	if err != nil {
		h.answer(ctx, cb, "Internal error, try again.", true)
		return fmt.Errorf("record complaint: %w", err)
	}
	if !added {
		// Another admin got there first.
		if rec, ok := h.Ledger.TryGet(key); ok {
			h.answerProcessed(ctx, cb, rec)
		} else {
			h.answer(ctx, cb, "This report is being processed.", false)
		}
		return nil
	}

	if err := h.applyComplaint(ctx, key, action); err != nil {
		h.Ledger.TryRemove(key)
		moderationActions.WithLabelValues("rollback").Inc()
		h.answer(ctx, cb, "The action failed, try again.", true)
		return err
	}

	h.answer(ctx, cb, "Done: user "+actionLabel(action)+".", false)
	h.markProcessed(ctx, cb, info)
	return nil
}

func (h *Handlers) applyComplaint(ctx context.Context, key domain.ComplaintKey, action domain.ComplaintAction) error {
	who := game.Mention(key.TargetUserID, "user")
	switch action {
	case domain.ActionMute30:
		d := h.Moderation.ReportMuteDuration
		if err := h.Client.RestrictUntil(ctx, key.SourceChatID, key.TargetUserID, h.now().Add(d)); err != nil {
			return fmt.Errorf("mute reported user: %w", err)
		}
		moderationActions.WithLabelValues("mute").Inc()
		h.reply(ctx, key.SourceChatID, fmt.Sprintf("🔇 %s is muted for %s by an administrator.", who, humanDuration(d)))
	case domain.ActionBan:
		if err := h.Client.Ban(ctx, key.SourceChatID, key.TargetUserID); err != nil {
			return fmt.Errorf("ban reported user: %w", err)
		}
		moderationActions.WithLabelValues("ban").Inc()
		h.reply(ctx, key.SourceChatID, fmt.Sprintf("⛔ %s was banned by an administrator.", who))
	default:
		moderationActions.WithLabelValues("ignore").Inc()
	}
	return nil
}

func (h *Handlers) answerProcessed(ctx context.Context, cb *bot.Callback, rec domain.ProcessedComplaint) {
	h.answer(ctx, cb, fmt.Sprintf("Already processed by %s (%s).", rec.AdminName, actionLabel(rec.Action)), true)
	h.markProcessed(ctx, cb, rec)
}

// markProcessed rewrites the admin's copy of the report and drops its buttons.
func (h *Handlers) markProcessed(ctx context.Context, cb *bot.Callback, rec domain.ProcessedComplaint) {
	if cb.Message == nil {
		return
	}
	text := fmt.Sprintf("%s\n\n✅ Processed by %s: %s", cb.Message.Text, rec.AdminName, actionLabel(rec.Action))
	if err := h.Client.EditText(ctx, cb.Message.Chat.ID, cb.Message.ID, text, nil); err != nil {
		log.Debug().Err(err).Int64("chat_id", cb.Message.Chat.ID).Msg("complaint message not updated")
	}
}

func escapeMarkdown(s string) string {
	return strings.NewReplacer("*", "", "_", "", "`", "", "[", "(", "]", ")").Replace(s)
}
