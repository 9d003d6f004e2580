package bot

import (
	"context"
	"time"
)

// Client is the chat transport consumed by the handlers. Every call is a
// remote operation and may fail; implementations must be safe for
// concurrent use.
type Client interface {
	// Send posts text to chatID and returns the new message id.
	Send(ctx context.Context, chatID int64, text string, opts *SendOptions) (int, error)
	// EditText replaces a message's text; a nil or empty keyboard in opts
	// removes the inline keyboard.
	EditText(ctx context.Context, chatID int64, messageID int, text string, opts *SendOptions) error
	// EditMarkup replaces only the inline keyboard.
	EditMarkup(ctx context.Context, chatID int64, messageID int, kb Keyboard) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	Forward(ctx context.Context, toChatID, fromChatID int64, messageID int) error
	// AnswerCallback acknowledges a button press, optionally as a modal alert.
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	// RestrictUntil revokes the user's send rights in chatID until the instant.
	RestrictUntil(ctx context.Context, chatID, userID int64, until time.Time) error
	Ban(ctx context.Context, chatID, userID int64) error
	MemberStatus(ctx context.Context, chatID, userID int64) (MemberStatus, error)
	Admins(ctx context.Context, chatID int64) ([]Member, error)
	// Me returns the bot's own identity.
	Me(ctx context.Context) (User, error)
}
