package telegram

import (
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/tbourn/go-modbot/internal/bot"
)

// fromUpdate converts a telebot update; ok is false for kinds the bot ignores.
func fromUpdate(u tele.Update) (bot.Update, bool) {
	switch {
	case u.Callback != nil:
		cb := u.Callback
		out := &bot.Callback{ID: cb.ID, Data: cb.Data, Message: fromMessage(cb.Message)}
		if cb.Sender != nil {
			out.From = fromUser(cb.Sender)
		}
		return bot.Update{ID: u.ID, Callback: out}, true
	case u.Message != nil:
		return bot.Update{ID: u.ID, Message: fromMessage(u.Message)}, true
	}
	return bot.Update{}, false
}

func fromMessage(m *tele.Message) *bot.Message {
	if m == nil {
		return nil
	}
	out := &bot.Message{
		ID:      m.ID,
		Text:    m.Text,
		Caption: m.Caption,
		Date:    time.Unix(m.Unixtime, 0).UTC(),
		ReplyTo: fromMessage(m.ReplyTo),
	}
	if m.Chat != nil {
		out.Chat = bot.Chat{ID: m.Chat.ID, Type: bot.ChatType(m.Chat.Type), Title: m.Chat.Title}
	}
	if m.Sender != nil {
		u := fromUser(m.Sender)
		out.From = &u
	}
	ents := m.Entities
	if m.Text == "" {
		ents = m.CaptionEntities
	}
	for _, e := range ents {
		out.Entities = append(out.Entities, bot.Entity{
			Type:   bot.EntityType(e.Type),
			Offset: e.Offset,
			Length: e.Length,
			URL:    e.URL,
		})
	}
	return out
}

func fromUser(u *tele.User) bot.User {
	return bot.User{
		ID:        u.ID,
		IsBot:     u.IsBot,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}

func markup(kb bot.Keyboard) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(kb))
	for _, row := range kb {
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, tele.InlineButton{Text: b.Text, Data: b.Data})
		}
		rows = append(rows, r)
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func sendOptions(o *bot.SendOptions) *tele.SendOptions {
	out := &tele.SendOptions{}
	if o == nil {
		return out
	}
	out.ParseMode = tele.ParseMode(o.ParseMode)
	out.DisableWebPagePreview = o.DisablePreview
	if len(o.Keyboard) > 0 {
		out.ReplyMarkup = markup(o.Keyboard)
	}
	return out
}
