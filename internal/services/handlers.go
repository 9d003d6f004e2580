package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-modbot/internal/bot"
	"github.com/tbourn/go-modbot/internal/cache"
	"github.com/tbourn/go-modbot/internal/config"
	"github.com/tbourn/go-modbot/internal/game"
	"github.com/tbourn/go-modbot/internal/utils"
)

// Handlers holds the dependencies shared by every route.
type Handlers struct {
	Client   bot.Client
	Settings *SettingsService
	Warnings *WarningService

	DB    *gorm.DB
	Stats StatsRepo

	Flood    *cache.FloodStore
	Throttle *cache.ThrottleStore
	Ledger   *cache.ProcessedStore
	Croc     *game.Crocodile
	Rolls    *game.RollStore

	Moderation config.ModerationConfig
	Owners     []int64
	// Username is the bot's own username, used to accept "/cmd@username".
	Username string
	Now      func() time.Time
}

// Routes returns the route table in evaluation order: message checks,
// then commands, then button callbacks.
func (h *Handlers) Routes() []Route {
	return []Route{
		{Name: "spam", Match: h.fromGroupMember, Handle: h.handleSpam},
		{Name: "links", Match: h.matchLink, Handle: h.handleLinks},
		{Name: "crocodile.guess", Match: h.matchGuess, Handle: h.handleGuess},
		{Name: "report", Match: h.command("!report", "!admin"), Handle: h.handleReport},
		{Name: "settings", Match: h.command("/settings"), Handle: h.handleSettings},
		{Name: "crocodile.start", Match: h.command("/crocodile"), Handle: h.handleCrocodileStart},
		{Name: "roll.start", Match: h.command("/roll"), Handle: h.handleRollStart},
		{Name: "owner.stats", Match: h.command("/botstats"), Handle: h.handleStats},

		{Name: "complaint", Match: callbackPrefix(complaintPrefix), Handle: h.handleComplaint},
		{Name: "settings.toggle", Match: callbackPrefix(settingsTogglePrefix), Handle: h.handleSettingsToggle},
		{Name: "crocodile.buttons", Match: callbackData(crocShowWord, crocChangeWord, crocEndGame), Handle: h.handleCrocodileButton},
		{Name: "roll.buttons", Match: callbackPrefix(rollPrefix, rollStopPrefix), Handle: h.handleRollButton},
	}
}

// RegisterHooks installs the timeout notifications of the games. Hook
// sends derive from ctx.
func (h *Handlers) RegisterHooks(ctx context.Context) {
	h.Croc.OnTimeout(func(st game.GameState) {
		h.announceTimeout(ctx, st)
	})
	h.Rolls.OnFinish(func(ev game.RollEvent) {
		if err := h.publishFinal(ctx, ev); err != nil {
			log.Warn().Err(err).Str("event_id", ev.ID.String()).Msg("final leaderboard not published")
		}
	})
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handlers) isOwner(userID int64) bool { return slices.Contains(h.Owners, userID) }

func (h *Handlers) isAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	st, err := h.Client.MemberStatus(ctx, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("member status: %w", err)
	}
	return st.IsAdmin(), nil
}

// reply sends Markdown text to chatID, logging instead of failing.
func (h *Handlers) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.Client.Send(ctx, chatID, text, bot.Markdown(nil)); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

// answer acknowledges a button press, logging instead of failing.
func (h *Handlers) answer(ctx context.Context, cb *bot.Callback, text string, alert bool) {
	if err := h.Client.AnswerCallback(ctx, cb.ID, text, alert); err != nil {
		log.Warn().Err(err).Int64("user_id", cb.From.ID).Msg("callback answer failed")
	}
}

// ----- Matchers -----

func (h *Handlers) fromGroupMember(u bot.Update) bool {
	m := u.Message
	return m != nil && m.Chat.IsGroup() && m.From != nil && !m.From.IsBot
}

func (h *Handlers) matchLink(u bot.Update) bool {
	if !h.fromGroupMember(u) {
		return false
	}
	_, ok := u.Message.FindLink()
	return ok
}

func (h *Handlers) matchGuess(u bot.Update) bool {
	if !h.fromGroupMember(u) {
		return false
	}
	text := strings.TrimSpace(u.Message.Text)
	if text == "" || isCommandText(text) {
		return false
	}
	return h.Croc.HasGame(u.Message.Chat.ID)
}

// command matches messages whose command is one of names.
func (h *Handlers) command(names ...string) func(bot.Update) bool {
	return func(u bot.Update) bool {
		if u.Message == nil || u.Message.From == nil {
			return false
		}
		cmd, _, ok := utils.ParseCommand(u.Message.Text, h.Username)
		return ok && slices.Contains(names, cmd)
	}
}

func callbackPrefix(prefixes ...string) func(bot.Update) bool {
	return func(u bot.Update) bool {
		if u.Callback == nil {
			return false
		}
		for _, p := range prefixes {
			if strings.HasPrefix(u.Callback.Data, p) {
				return true
			}
		}
		return false
	}
}

func callbackData(values ...string) func(bot.Update) bool {
	return func(u bot.Update) bool {
		return u.Callback != nil && slices.Contains(values, u.Callback.Data)
	}
}

func isCommandText(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "!")
}

func commandArgs(text, username string) []string {
	_, args, _ := utils.ParseCommand(text, username)
	return args
}

// humanDuration renders whole hours or minutes compactly.
func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%d h", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d min", d/time.Minute)
	}
	return d.String()
}
