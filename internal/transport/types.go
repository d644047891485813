package transport

import (
	"context"
	"strconv"
	"strings"
)

// ChatTarget addresses a chat (and optionally a forum topic) on the messaging
// platform. Public channels may be addressed by Username ("@name") instead of
// a numeric ChatID; the ID wins when both are set.
type ChatTarget struct {
	ChatID   int64
	Username string
	ThreadID int
}

// IsZero reports whether the target addresses no chat at all.
func (t ChatTarget) IsZero() bool { return t.ChatID == 0 && t.Username == "" }

// Recipient is the chat_id parameter of the Bot API.
func (t ChatTarget) Recipient() string {
	if t.ChatID != 0 {
		return strconv.FormatInt(t.ChatID, 10)
	}
	return t.Username
}

// Matches reports whether a chat with the given id and username is this target.
func (t ChatTarget) Matches(id int64, username string) bool {
	if t.ChatID != 0 {
		return id == t.ChatID
	}
	if t.Username == "" || username == "" {
		return false
	}
	return strings.EqualFold(strings.TrimPrefix(t.Username, "@"), strings.TrimPrefix(username, "@"))
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers plain text to a chat. A nil error means the platform
// confirmed the message.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// Command is an inbound bot command addressed to us.
type Command struct {
	Name     string // without leading slash, lowercased
	Args     string
	ChatID   int64
	ThreadID int
	FromID   int64
}

// CommandHandler answers a command with reply text. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, cmd Command) (string, error)

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}
