// Package bot defines the transport-neutral chat model the moderation
// handlers work with: updates, messages, callbacks, keyboards, and the
// narrow Client interface implemented by a concrete chat transport.
package bot

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/tbourn/go-modbot/internal/sysutil"
)

// ChatType classifies a chat.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSuperGroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// Chat identifies a conversation.
type Chat struct {
	ID    int64
	Type  ChatType
	Title string
}

// IsGroup reports whether the chat is a group or supergroup.
func (c Chat) IsGroup() bool { return c.Type == ChatGroup || c.Type == ChatSuperGroup }

// Name returns the chat title, or its id when untitled.
func (c Chat) Name() string {
	if strings.TrimSpace(c.Title) != "" {
		return c.Title
	}
	return strconv.FormatInt(c.ID, 10)
}

// User is a message or callback sender.
type User struct {
	ID        int64
	IsBot     bool
	FirstName string
	LastName  string
	Username  string
}

// DisplayName prefers the first name, then the username, then the numeric id.
func (u User) DisplayName() string {
	return sysutil.FirstNonEmpty(u.FirstName, u.Username, strconv.FormatInt(u.ID, 10))
}

// EntityType is the kind of a formatted span inside message text.
type EntityType string

const (
	EntityURL      EntityType = "url"
	EntityTextLink EntityType = "text_link"
	EntityEmail    EntityType = "email"
	EntityMention  EntityType = "mention"
	EntityCommand  EntityType = "bot_command"
)

// Entity is a formatted span. Offset and Length count UTF-16 code units.
type Entity struct {
	Type   EntityType
	Offset int
	Length int
	URL    string // text_link target
}

// Message is an inbound or previously sent chat message.
type Message struct {
	ID       int
	Chat     Chat
	From     *User
	Text     string
	Caption  string
	Entities []Entity // text or caption entities, whichever applies
	ReplyTo  *Message
	Date     time.Time
}

// Body returns the text, or the caption for media messages.
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// FindLink returns the first url, text_link or email carried by the message.
func (m *Message) FindLink() (string, bool) {
	body := m.Body()
	for _, e := range m.Entities {
		switch e.Type {
		case EntityTextLink:
			if e.URL != "" {
				return e.URL, true
			}
		case EntityURL, EntityEmail:
			if s, ok := EntityText(body, e); ok {
				return s, true
			}
		}
	}
	return "", false
}

// EntityText extracts the span e covers in text, converting the UTF-16
// offsets used on the wire. ok is false when the span is out of range.
func EntityText(text string, e Entity) (string, bool) {
	units := utf16.Encode([]rune(text))
	if e.Offset < 0 || e.Length < 0 || e.Offset+e.Length > len(units) {
		return "", false
	}
	return string(utf16.Decode(units[e.Offset : e.Offset+e.Length])), true
}

// Callback is an inline keyboard button press.
type Callback struct {
	ID      string
	From    User
	Message *Message // message carrying the keyboard; nil for inline-mode results
	Data    string
}

// Update is one inbound event; exactly one of Message or Callback is set.
type Update struct {
	ID       int
	Message  *Message
	Callback *Callback
}

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard, row by row.
type Keyboard [][]Button

// ParseMode selects how outgoing text is formatted.
type ParseMode string

const (
	ModeNone     ParseMode = ""
	ModeMarkdown ParseMode = "Markdown"
	ModeHTML     ParseMode = "HTML"
)

// SendOptions tune an outgoing or edited message.
type SendOptions struct {
	ParseMode      ParseMode
	Keyboard       Keyboard
	DisablePreview bool
}

// Markdown is shorthand for Markdown formatting with an optional keyboard.
func Markdown(kb Keyboard) *SendOptions {
	return &SendOptions{ParseMode: ModeMarkdown, Keyboard: kb, DisablePreview: true}
}

// MemberStatus is a user's standing in a chat.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// IsAdmin reports whether the status grants moderation rights.
func (s MemberStatus) IsAdmin() bool { return s == StatusCreator || s == StatusAdministrator }

// Member pairs a user with their status in a chat.
type Member struct {
	User   User
	Status MemberStatus
}
