// Package telegram adapts gopkg.in/telebot.v4 to the bot.Client interface
// and feeds long-polled updates to a dispatch function.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v4"

	"github.com/tbourn/go-modbot/internal/bot"
)

// Config configures the Telegram transport.
type Config struct {
	Token       string
	PollTimeout time.Duration
	// URL overrides the Bot API endpoint (tests, local Bot API servers).
	URL string
	// Offline skips the startup getMe call.
	Offline bool
}

// DispatchFunc receives every converted inbound update. It is invoked
// concurrently, one goroutine per update.
type DispatchFunc func(ctx context.Context, u bot.Update)

// Transport implements bot.Client on top of a telebot.Bot.
type Transport struct {
	b *tele.Bot
}

var _ bot.Client = (*Transport)(nil)

// New connects to the Bot API (unless cfg.Offline) and returns the transport.
func New(cfg Config) (*Transport, error) {
	if strings.TrimSpace(cfg.Token) == "" && !cfg.Offline {
		return nil, errors.New("telegram: bot token is empty")
	}
	poll := cfg.PollTimeout
	if poll <= 0 {
		poll = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.URL,
		Token:   cfg.Token,
		Offline: cfg.Offline,
		Poller: &tele.LongPoller{
			Timeout:        poll,
			AllowedUpdates: []string{"message", "callback_query"},
		},
		OnError: func(err error, c tele.Context) {
			ev := log.Error().Err(err)
			if c != nil && c.Update().ID != 0 {
				ev = ev.Int("update_id", c.Update().ID)
			}
			ev.Msg("telegram handler error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: new bot: %w", err)
	}
	return &Transport{b: b}, nil
}

// Run registers the update handlers and long-polls until ctx is done.
func (t *Transport) Run(ctx context.Context, dispatch DispatchFunc) {
	h := func(c tele.Context) error {
		if u, ok := fromUpdate(c.Update()); ok {
			dispatch(ctx, u)
		}
		return nil
	}
	t.b.Handle(tele.OnText, h)
	t.b.Handle(tele.OnMedia, h)
	t.b.Handle(tele.OnCallback, h)

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.b.Start()
	}()
	log.Info().Str("username", t.b.Me.Username).Msg("telegram polling started")

	<-ctx.Done()
	t.b.Stop()
	<-done
	log.Info().Msg("telegram polling stopped")
}

// Send implements bot.Client.
func (t *Transport) Send(_ context.Context, chatID int64, text string, opts *bot.SendOptions) (int, error) {
	m, err := t.b.Send(tele.ChatID(chatID), text, sendOptions(opts))
	if err != nil {
		return 0, fmt.Errorf("telegram: send to %d: %w", chatID, err)
	}
	return m.ID, nil
}

// EditText implements bot.Client. Editing to identical content is not an error.
func (t *Transport) EditText(_ context.Context, chatID int64, messageID int, text string, opts *bot.SendOptions) error {
	_, err := t.b.Edit(stored(chatID, messageID), text, sendOptions(opts))
	if err != nil && !notModified(err) {
		return fmt.Errorf("telegram: edit %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

// EditMarkup implements bot.Client.
func (t *Transport) EditMarkup(_ context.Context, chatID int64, messageID int, kb bot.Keyboard) error {
	_, err := t.b.EditReplyMarkup(stored(chatID, messageID), markup(kb))
	if err != nil && !notModified(err) {
		return fmt.Errorf("telegram: edit markup %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

// Delete implements bot.Client.
func (t *Transport) Delete(_ context.Context, chatID int64, messageID int) error {
	if err := t.b.Delete(stored(chatID, messageID)); err != nil {
		return fmt.Errorf("telegram: delete %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

// Forward implements bot.Client.
func (t *Transport) Forward(_ context.Context, toChatID, fromChatID int64, messageID int) error {
	if _, err := t.b.Forward(tele.ChatID(toChatID), stored(fromChatID, messageID)); err != nil {
		return fmt.Errorf("telegram: forward %d/%d to %d: %w", fromChatID, messageID, toChatID, err)
	}
	return nil
}

// AnswerCallback implements bot.Client.
func (t *Transport) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	err := t.b.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{
		CallbackID: callbackID,
		Text:       text,
		ShowAlert:  alert,
	})
	if err != nil {
		return fmt.Errorf("telegram: answer callback: %w", err)
	}
	return nil
}

// RestrictUntil implements bot.Client by revoking every send right.
func (t *Transport) RestrictUntil(_ context.Context, chatID, userID int64, until time.Time) error {
	member := &tele.ChatMember{
		User:            &tele.User{ID: userID},
		Rights:          tele.NoRights(),
		RestrictedUntil: until.Unix(),
	}
	if err := t.b.Restrict(&tele.Chat{ID: chatID}, member); err != nil {
		return fmt.Errorf("telegram: restrict %d in %d: %w", userID, chatID, err)
	}
	return nil
}

// Ban implements bot.Client.
func (t *Transport) Ban(_ context.Context, chatID, userID int64) error {
	if err := t.b.Ban(&tele.Chat{ID: chatID}, &tele.ChatMember{User: &tele.User{ID: userID}}); err != nil {
		return fmt.Errorf("telegram: ban %d in %d: %w", userID, chatID, err)
	}
	return nil
}

// MemberStatus implements bot.Client.
func (t *Transport) MemberStatus(_ context.Context, chatID, userID int64) (bot.MemberStatus, error) {
	m, err := t.b.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	if err != nil {
		return "", fmt.Errorf("telegram: member %d of %d: %w", userID, chatID, err)
	}
	return bot.MemberStatus(m.Role), nil
}

// Admins implements bot.Client.
func (t *Transport) Admins(_ context.Context, chatID int64) ([]bot.Member, error) {
	ms, err := t.b.AdminsOf(&tele.Chat{ID: chatID})
	if err != nil {
		return nil, fmt.Errorf("telegram: admins of %d: %w", chatID, err)
	}
	out := make([]bot.Member, 0, len(ms))
	for _, m := range ms {
		if m.User == nil {
			continue
		}
		out = append(out, bot.Member{User: fromUser(m.User), Status: bot.MemberStatus(m.Role)})
	}
	return out, nil
}

// Me implements bot.Client.
func (t *Transport) Me(context.Context) (bot.User, error) {
	if t.b.Me == nil {
		return bot.User{}, errors.New("telegram: identity unknown")
	}
	return fromUser(t.b.Me), nil
}

func stored(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{ChatID: chatID, MessageID: strconv.Itoa(messageID)}
}

func notModified(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}
