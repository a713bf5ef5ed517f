// Package store holds the per-session conversation log. Two backends are
// provided: a bounded in-memory ring (the default) and a SQLite database for
// logs that survive restarts.
package store

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message sent by the user.
	RoleUser Role = "user"
	// RoleAssistant is a reply produced by the assistant.
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	// ID is a ULID assigned on append; it sorts in append order.
	ID string `json:"id"`
	// Role is the author of the message.
	Role Role `json:"role"`
	// Content is the text of the message.
	Content string `json:"content"`
	// Category is the query category that produced an assistant message.
	Category string `json:"category,omitempty"`
	// CreatedAt is when the message was appended.
	CreatedAt time.Time `json:"created_at"`
}

// ConversationStore persists conversation history keyed by session id.
// Implementations must be safe for concurrent use.
type ConversationStore interface {
	// Append stores msgs for the session as one unit, in order. Empty IDs
	// and zero timestamps are filled in.
	Append(ctx context.Context, sessionID string, msgs ...Message) error
	// Recent returns the most recent n messages for the session, oldest
	// first. If fewer than n exist, all are returned.
	Recent(ctx context.Context, sessionID string, n int) ([]Message, error)
	// Count returns the number of messages held for the session.
	Count(ctx context.Context, sessionID string) (int, error)
	// Clear deletes every message of the session.
	Clear(ctx context.Context, sessionID string) error
	// Close releases any resources held by the store.
	Close() error
}

// ids generates monotonically increasing ULIDs shared by both backends.
var ids = struct {
	sync.Mutex
	entropy *ulid.MonotonicEntropy
}{entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)}

// stamp fills in a missing ID and CreatedAt.
func stamp(m *Message, now time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.ID == "" {
		ids.Lock()
		m.ID = ulid.MustNew(ulid.Timestamp(m.CreatedAt), ids.entropy).String()
		ids.Unlock()
	}
}
