// Package conversation keeps a short rolling window of chat turns per device.
//
// History is best-effort: callers log store errors and carry on.
package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/nadzzz/moodshift/internal/message"
)

// DefaultMaxMessages keeps the last four user and four assistant turns.
const DefaultMaxMessages = 8

const languagePlaceholder = "$languageName"

// Message is one stored turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is everything stored for one device.
type Record struct {
	DeviceID     string    `json:"deviceId"`
	Messages     []Message `json:"messages"`
	LastActivity time.Time `json:"lastActivity"`
}

// Store persists conversation records.
type Store interface {
	// Read returns the stored turns oldest first. A device without history
	// yields an empty slice and no error.
	Read(ctx context.Context, deviceID string) ([]Message, error)

	// Append adds a user turn and an assistant turn sharing one timestamp,
	// then trims the record to the newest turns.
	Append(ctx context.Context, deviceID, user, assistant string) error

	// Clear deletes the record.
	Clear(ctx context.Context, deviceID string) error

	Close() error
}

// Pair returns the user and assistant turns for one exchange.
func Pair(user, assistant string, at time.Time) []Message {
	return []Message{
		{Role: message.RoleUser, Content: user, Timestamp: at},
		{Role: message.RoleAssistant, Content: assistant, Timestamp: at},
	}
}

// PairLimit turns a configured cap into a whole number of exchanges: odd
// caps round down, and anything below one pair selects DefaultMaxMessages.
func PairLimit(limit int) int {
	limit -= limit % 2
	if limit < 2 {
		return DefaultMaxMessages
	}
	return limit
}

// Window appends added to existing and keeps only the newest limit entries.
// An odd limit is rounded down so the window never starts mid-exchange.
func Window(existing []Message, limit int, added ...Message) []Message {
	out := make([]Message, 0, len(existing)+len(added))
	out = append(out, existing...)
	out = append(out, added...)
	limit -= limit % 2
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// BuildMessages assembles the chat sequence for a new user turn: the system
// prompt with every language placeholder substituted, the history without its
// most recent pair, then the new user text.
func BuildMessages(history []Message, userText, systemPrompt, languageName string) []message.ChatMessage {
	var replay []Message
	if len(history) > 2 {
		replay = history[:len(history)-2]
	}

	msgs := make([]message.ChatMessage, 0, len(replay)+2)
	msgs = append(msgs, message.ChatMessage{
		Role:    message.RoleSystem,
		Content: strings.ReplaceAll(systemPrompt, languagePlaceholder, languageName),
	})
	for _, m := range replay {
		msgs = append(msgs, message.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return append(msgs, message.ChatMessage{Role: message.RoleUser, Content: userText})
}
