package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-modbot/internal/bot"
	"github.com/tbourn/go-modbot/internal/game"
)

const (
	crocShowWord   = "show_word"
	crocChangeWord = "change_word"
	crocEndGame    = "end_game"
)

var crocodileKeyboard = bot.Keyboard{
	{{Text: "👀 Show word", Data: crocShowWord}, {Text: "🔄 Change word", Data: crocChangeWord}},
	{{Text: "🏁 End game", Data: crocEndGame}},
}

func (h *Handlers) handleCrocodileStart(ctx context.Context, u bot.Update) error {
	msg := u.Message
	if !msg.Chat.IsGroup() {
		h.reply(ctx, msg.Chat.ID, "The game is played in groups.")
		return nil
	}
	if _, ok := h.Croc.TryStartGame(msg.Chat.ID, msg.From.ID); !ok {
		h.reply(ctx, msg.Chat.ID, "A game is already running in this chat.")
		return nil
	}

	text := fmt.Sprintf("🐊 %s is explaining a word! Guess it in the chat. Time: %s.",
		game.Mention(msg.From.ID, msg.From.DisplayName()), humanDuration(h.Croc.Timeout()))
	if _, err := h.Client.Send(ctx, msg.Chat.ID, text, bot.Markdown(crocodileKeyboard)); err != nil {
		// Nobody could see the round; drop it.
		h.Croc.EndGame(msg.Chat.ID)
		return fmt.Errorf("announce game: %w", err)
	}
	return nil
}

func (h *Handlers) handleCrocodileButton(ctx context.Context, u bot.Update) error {
	cb := u.Callback
	if cb.Message == nil {
		return ErrNoMessage
	}
	chatID := cb.Message.Chat.ID

	st, ok := h.Croc.TryGetGameState(chatID)
	if !ok {
		h.answer(ctx, cb, "No game is running.", false)
		return nil
	}
	if st.HostID != cb.From.ID {
		h.answer(ctx, cb, "Only the host can use these buttons.", true)
		return nil
	}

	switch cb.Data {
	case crocShowWord:
		h.answer(ctx, cb, "Your word: "+st.Word, true)
	case crocChangeWord:
		word, ok := h.Croc.TryChangeWord(chatID)
		if !ok {
			h.answer(ctx, cb, "No game is running.", false)
			return nil
		}
		h.answer(ctx, cb, "New word: "+word, true)
	case crocEndGame:
		final, ok := h.Croc.EndGame(chatID)
		if !ok {
			h.answer(ctx, cb, "The game is already over.", false)
			return nil
		}
		h.answer(ctx, cb, "Game ended.", false)
		h.reply(ctx, chatID, fmt.Sprintf("🏁 The host ended the game. The word was *%s*.", final.Word))
	}
	return nil
}

func (h *Handlers) handleGuess(ctx context.Context, u bot.Update) error {
	msg := u.Message
	st, ok := h.Croc.TryWin(msg.Chat.ID, msg.From.ID, msg.Text)
	if !ok {
		return nil
	}
	h.reply(ctx, msg.Chat.ID, fmt.Sprintf("🎉 %s guessed the word *%s*!",
		game.Mention(msg.From.ID, msg.From.DisplayName()), st.Word))
	return nil
}

func (h *Handlers) announceTimeout(ctx context.Context, st game.GameState) {
	log.Info().Int64("chat_id", st.ChatID).Uint64("game_id", st.GameID).Msg("crocodile round timed out")
	h.reply(ctx, st.ChatID, fmt.Sprintf("⏰ Time is up! Nobody guessed *%s*.", st.Word))
}
