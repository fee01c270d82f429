package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Bonshal/swapspot/internal/domain/messaging"
	domainuser "github.com/Bonshal/swapspot/internal/domain/user"
)

// MessagingBackend is an in-memory stand-in for the hosted conversation and
// message store. It implements the same contract the Mongo gateway does:
// per-record atomic writes, read-after-write visibility, no transactions.
type MessagingBackend struct {
	mu            sync.Mutex
	conversations map[string]*conversationRecord
	messages      map[string][]*messageRecord

	// Users and Listings resolve display fields; both are optional and the
	// backend degrades to bare ids without them.
	Users    *UserRepository
	Listings *ListingRepository

	// Now is swappable for deterministic tests.
	Now func() time.Time

	lastStamp time.Time
}

type conversationRecord struct {
	id           string
	participants [2]string
	listingID    string
	listingTitle string
	createdAt    time.Time
	lastMessage  messaging.LastMessage
}

type messageRecord struct {
	messaging.Message
}

func NewMessagingBackend() *MessagingBackend {
	return &MessagingBackend{
		conversations: make(map[string]*conversationRecord),
		messages:      make(map[string][]*messageRecord),
	}
}

func (b *MessagingBackend) Conversations(ctx context.Context, viewerID string) ([]messaging.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]messaging.Conversation, 0, len(b.conversations))
	for _, record := range b.conversations {
		other, ok := record.otherParty(viewerID)
		if !ok {
			continue
		}
		unread := 0
		for _, message := range b.messages[record.id] {
			if message.ReceiverID == viewerID && !message.Read {
				unread++
			}
		}
		conversation := messaging.Conversation{
			ID:            record.id,
			ParticipantID: other,
			LastMessage:   record.lastMessage,
			UnreadCount:   unread,
			ListingID:     record.listingID,
			ListingTitle:  record.listingTitle,
		}
		conversation.ParticipantName, conversation.ParticipantAvatar = b.displayFieldsLocked(ctx, other)
		out = append(out, conversation)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
	})
	return out, nil
}

func (b *MessagingBackend) Messages(ctx context.Context, conversationID string) ([]messaging.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conversations[conversationID]; !ok {
		return nil, messaging.ErrNotFound
	}
	records := b.messages[conversationID]
	out := make([]messaging.Message, 0, len(records))
	for _, record := range records {
		out = append(out, record.Message)
	}
	// Messages are appended in send order and stamps are monotonic, so the
	// slice is already ascending by CreatedAt.
	return out, nil
}

func (b *MessagingBackend) Send(ctx context.Context, senderID, receiverID, content, listingID string) (messaging.Message, error) {
	content, err := messaging.ValidateContent(content)
	if err != nil {
		return messaging.Message{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	// First thread between the pair wins, whatever listing it was opened
	// about. Listing-specific threads only come from StartConversation.
	record := b.findPairLocked(senderID, receiverID)
	if record == nil {
		record = b.createConversationLocked(senderID, receiverID, listingID)
	}
	return b.appendMessageLocked(record, senderID, receiverID, content), nil
}

func (b *MessagingBackend) MarkRead(ctx context.Context, viewerID, messageID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, records := range b.messages {
		for _, record := range records {
			if record.ID != messageID {
				continue
			}
			if record.ReceiverID != viewerID {
				return messaging.ErrNotReceiver
			}
			record.Read = true
			return nil
		}
	}
	return messaging.ErrNotFound
}

func (b *MessagingBackend) StartConversation(ctx context.Context, viewerID, sellerID, listingID, content string) (string, messaging.Message, error) {
	content, err := messaging.ValidateContent(content)
	if err != nil {
		return "", messaging.Message{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	record := b.createConversationLocked(viewerID, sellerID, listingID)
	message := b.appendMessageLocked(record, viewerID, sellerID, content)
	return record.id, message, nil
}

func (b *MessagingBackend) findPairLocked(a, c string) *conversationRecord {
	var earliest *conversationRecord
	for _, record := range b.conversations {
		if !record.hasParticipants(a, c) {
			continue
		}
		if earliest == nil || record.createdAt.Before(earliest.createdAt) {
			earliest = record
		}
	}
	return earliest
}

func (b *MessagingBackend) createConversationLocked(a, c, listingID string) *conversationRecord {
	record := &conversationRecord{
		id:           uuid.NewString(),
		participants: [2]string{a, c},
		listingID:    strings.TrimSpace(listingID),
		createdAt:    b.stamp(),
	}
	if record.listingID != "" && b.Listings != nil {
		if item, err := b.Listings.ByID(context.Background(), record.listingID); err == nil {
			record.listingTitle = item.Title
		}
	}
	b.conversations[record.id] = record
	return record
}

func (b *MessagingBackend) appendMessageLocked(record *conversationRecord, senderID, receiverID, content string) messaging.Message {
	message := messaging.Message{
		ID:             uuid.NewString(),
		ConversationID: record.id,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		CreatedAt:      b.stamp(),
		ListingID:      record.listingID,
		ListingTitle:   record.listingTitle,
	}
	b.messages[record.id] = append(b.messages[record.id], &messageRecord{Message: message})
	record.lastMessage = messaging.LastMessage{
		Content:   content,
		CreatedAt: message.CreatedAt,
		SenderID:  senderID,
	}
	return message
}

// stamp produces strictly increasing timestamps so ordering stays stable even
// when the clock resolution collapses consecutive sends.
func (b *MessagingBackend) stamp() time.Time {
	now := time.Now()
	if b.Now != nil {
		now = b.Now()
	}
	if !now.After(b.lastStamp) {
		now = b.lastStamp.Add(time.Millisecond)
	}
	b.lastStamp = now
	return now
}

func (b *MessagingBackend) displayFieldsLocked(ctx context.Context, userID string) (name, avatar string) {
	if b.Users == nil {
		return userID, ""
	}
	account, err := b.Users.ByID(ctx, domainuser.ID(userID))
	if err != nil {
		return userID, ""
	}
	return account.Name, account.AvatarURL
}

func (r *conversationRecord) otherParty(viewerID string) (string, bool) {
	switch viewerID {
	case r.participants[0]:
		return r.participants[1], true
	case r.participants[1]:
		return r.participants[0], true
	default:
		return "", false
	}
}

func (r *conversationRecord) hasParticipants(a, b string) bool {
	return (r.participants[0] == a && r.participants[1] == b) ||
		(r.participants[0] == b && r.participants[1] == a)
}

var _ messaging.Gateway = (*MessagingBackend)(nil)
