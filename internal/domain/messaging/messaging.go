package messaging

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a conversation, message or listing does not exist.
	ErrNotFound = errors.New("messaging: not found")
	// ErrNotReceiver is returned when a viewer tries to mark a message they did not receive.
	ErrNotReceiver = errors.New("messaging: viewer is not the receiver")
	// ErrEmptyContent rejects blank message bodies before they reach the backend.
	ErrEmptyContent = errors.New("messaging: content is required")
	// ErrUnavailable wraps connectivity failures against the backing store.
	ErrUnavailable = errors.New("messaging: backend unavailable")
)

// LastMessage is a denormalized snapshot kept on the conversation for display.
// It can drift from the message history until the next summary refresh.
type LastMessage struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	SenderID  string    `json:"sender_id"`
}

// Conversation is a two-party thread, optionally tied to one listing.
// ParticipantID identifies the other party; the viewer is implicit.
type Conversation struct {
	ID                string      `json:"id"`
	ParticipantID     string      `json:"participant_id"`
	ParticipantName   string      `json:"participant_name"`
	ParticipantAvatar string      `json:"participant_avatar,omitempty"`
	LastMessage       LastMessage `json:"last_message"`
	UnreadCount       int         `json:"unread_count"`
	ListingID         string      `json:"listing_id,omitempty"`
	ListingTitle      string      `json:"listing_title,omitempty"`
}

// Message is a single chat entry. Messages are never edited or deleted;
// Read flips false -> true exactly once.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Read           bool      `json:"read"`
	ListingID      string    `json:"listing_id,omitempty"`
	ListingTitle   string    `json:"listing_title,omitempty"`
}

// ValidateContent enforces the non-empty body rule shared by Send and StartConversation.
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyContent
	}
	return trimmed, nil
}

// Gateway translates domain operations into calls against the hosted backend.
// It owns no state: every method is a plain request/response round trip, and
// implementations map raw backend records into the typed structs above so
// nothing untyped leaks past this boundary.
type Gateway interface {
	// Conversations returns every thread the viewer participates in, each with a
	// freshly computed unread count and the other party's current display
	// fields, ordered most-recently-active first.
	Conversations(ctx context.Context, viewerID string) ([]Conversation, error)

	// Messages returns the full history of one thread in ascending CreatedAt
	// order. It does not mutate read flags; marking read is a separate step.
	Messages(ctx context.Context, conversationID string) ([]Message, error)

	// Send delivers a message to receiverID, reusing the first existing thread
	// between the pair regardless of listing, or creating one. Not idempotent:
	// calling twice creates two messages. The thread's denormalized LastMessage
	// is updated as a side effect.
	Send(ctx context.Context, senderID, receiverID, content, listingID string) (Message, error)

	// MarkRead flips one message to read. Fails with ErrNotReceiver when the
	// viewer is not the addressee; marking an already-read message is a no-op.
	MarkRead(ctx context.Context, viewerID, messageID string) error

	// StartConversation always creates a brand-new thread about a listing,
	// seeded with one message.
	StartConversation(ctx context.Context, viewerID, sellerID, listingID, content string) (string, Message, error)
}
