package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Bonshal/swapspot/internal/domain/messaging"
)

// MessagingGateway implements the messaging gateway over the hosted document
// store. It is deliberately thin: one query or write per call, no local
// state, and every raw document is decoded into a typed struct before it
// leaves this package.
type MessagingGateway struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
	users         *mongo.Collection
	listings      *mongo.Collection
}

func NewMessagingGateway(db *mongo.Database) *MessagingGateway {
	return &MessagingGateway{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
		users:         db.Collection("users"),
		listings:      db.Collection("listings"),
	}
}

func (g *MessagingGateway) Conversations(ctx context.Context, viewerID string) ([]messaging.Conversation, error) {
	filter := bson.M{"participants": viewerID}
	opts := options.Find().SetSort(bson.D{{Key: "last_message.created_at", Value: -1}})
	cursor, err := g.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapMessagingErr(err)
	}
	var docs []conversationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mapMessagingErr(err)
	}

	out := make([]messaging.Conversation, 0, len(docs))
	for _, doc := range docs {
		conversation, err := g.enrich(ctx, doc, viewerID)
		if err != nil {
			return nil, err
		}
		out = append(out, conversation)
	}
	return out, nil
}

func (g *MessagingGateway) Messages(ctx context.Context, conversationID string) ([]messaging.Message, error) {
	count, err := g.conversations.CountDocuments(ctx, bson.M{"_id": conversationID})
	if err != nil {
		return nil, mapMessagingErr(err)
	}
	if count == 0 {
		return nil, messaging.ErrNotFound
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := g.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, mapMessagingErr(err)
	}
	var docs []messageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mapMessagingErr(err)
	}
	out := make([]messaging.Message, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toMessage())
	}
	return out, nil
}

func (g *MessagingGateway) Send(ctx context.Context, senderID, receiverID, content, listingID string) (messaging.Message, error) {
	content, err := messaging.ValidateContent(content)
	if err != nil {
		return messaging.Message{}, err
	}

	// Reuse the earliest thread between the pair; the listing the thread was
	// opened about does not factor into the match.
	pairFilter := bson.M{"participants": bson.M{"$all": []string{senderID, receiverID}, "$size": 2}}
	findOpts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})

	var doc conversationDocument
	err = g.conversations.FindOne(ctx, pairFilter, findOpts).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		doc, err = g.insertConversation(ctx, senderID, receiverID, listingID)
		if err != nil {
			return messaging.Message{}, err
		}
	case err != nil:
		return messaging.Message{}, mapMessagingErr(err)
	}

	return g.insertMessage(ctx, doc, senderID, receiverID, content)
}

func (g *MessagingGateway) MarkRead(ctx context.Context, viewerID, messageID string) error {
	var doc messageDocument
	if err := g.messages.FindOne(ctx, bson.M{"_id": messageID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return messaging.ErrNotFound
		}
		return mapMessagingErr(err)
	}
	if doc.ReceiverID != viewerID {
		return messaging.ErrNotReceiver
	}
	// Setting read=true on an already-read message matches the filter and
	// writes the same value, so the call stays idempotent.
	_, err := g.messages.UpdateOne(ctx, bson.M{"_id": messageID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return mapMessagingErr(err)
	}
	return nil
}

func (g *MessagingGateway) StartConversation(ctx context.Context, viewerID, sellerID, listingID, content string) (string, messaging.Message, error) {
	content, err := messaging.ValidateContent(content)
	if err != nil {
		return "", messaging.Message{}, err
	}
	doc, err := g.insertConversation(ctx, viewerID, sellerID, listingID)
	if err != nil {
		return "", messaging.Message{}, err
	}
	message, err := g.insertMessage(ctx, doc, viewerID, sellerID, content)
	if err != nil {
		return "", messaging.Message{}, err
	}
	return doc.ID, message, nil
}

func (g *MessagingGateway) insertConversation(ctx context.Context, a, b, listingID string) (conversationDocument, error) {
	doc := conversationDocument{
		ID:           uuid.NewString(),
		Participants: []string{a, b},
		ListingID:    listingID,
		CreatedAt:    time.Now().UnixMilli(),
	}
	if listingID != "" {
		var item struct {
			Title string `bson:"title"`
		}
		err := g.listings.FindOne(ctx, bson.M{"_id": listingID}).Decode(&item)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return conversationDocument{}, messaging.ErrNotFound
		case err != nil:
			return conversationDocument{}, mapMessagingErr(err)
		}
		doc.ListingTitle = item.Title
	}
	if _, err := g.conversations.InsertOne(ctx, doc); err != nil {
		return conversationDocument{}, mapMessagingErr(err)
	}
	return doc, nil
}

func (g *MessagingGateway) insertMessage(ctx context.Context, conversation conversationDocument, senderID, receiverID, content string) (messaging.Message, error) {
	doc := messageDocument{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		CreatedAt:      time.Now().UnixMilli(),
		ListingID:      conversation.ListingID,
		ListingTitle:   conversation.ListingTitle,
	}
	if _, err := g.messages.InsertOne(ctx, doc); err != nil {
		return messaging.Message{}, mapMessagingErr(err)
	}
	update := bson.M{"$set": bson.M{"last_message": lastMessageDocument{
		Content:   content,
		CreatedAt: doc.CreatedAt,
		SenderID:  senderID,
	}}}
	if _, err := g.conversations.UpdateOne(ctx, bson.M{"_id": conversation.ID}, update); err != nil {
		return messaging.Message{}, mapMessagingErr(err)
	}
	return doc.toMessage(), nil
}

// enrich computes the unread count and resolves the other party's current
// display fields. One count plus one lookup per thread; list sizes are small
// enough that fan-out queries beat maintaining denormalized counters.
func (g *MessagingGateway) enrich(ctx context.Context, doc conversationDocument, viewerID string) (messaging.Conversation, error) {
	other := doc.otherParty(viewerID)
	unread, err := g.messages.CountDocuments(ctx, bson.M{
		"conversation_id": doc.ID,
		"receiver_id":     viewerID,
		"read":            false,
	})
	if err != nil {
		return messaging.Conversation{}, mapMessagingErr(err)
	}

	conversation := messaging.Conversation{
		ID:            doc.ID,
		ParticipantID: other,
		LastMessage:   doc.LastMessage.toLastMessage(),
		UnreadCount:   int(unread),
		ListingID:     doc.ListingID,
		ListingTitle:  doc.ListingTitle,
	}

	var account struct {
		Name      string `bson:"name"`
		AvatarURL string `bson:"avatar_url"`
	}
	err = g.users.FindOne(ctx, bson.M{"_id": other}).Decode(&account)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		conversation.ParticipantName = other
	case err != nil:
		return messaging.Conversation{}, mapMessagingErr(err)
	default:
		conversation.ParticipantName = account.Name
		conversation.ParticipantAvatar = account.AvatarURL
	}
	return conversation, nil
}

type conversationDocument struct {
	ID           string              `bson:"_id"`
	Participants []string            `bson:"participants"`
	ListingID    string              `bson:"listing_id,omitempty"`
	ListingTitle string              `bson:"listing_title,omitempty"`
	CreatedAt    int64               `bson:"created_at"`
	LastMessage  lastMessageDocument `bson:"last_message"`
}

func (d conversationDocument) otherParty(viewerID string) string {
	for _, participant := range d.Participants {
		if participant != viewerID {
			return participant
		}
	}
	return viewerID
}

type lastMessageDocument struct {
	Content   string `bson:"content"`
	CreatedAt int64  `bson:"created_at"`
	SenderID  string `bson:"sender_id"`
}

func (d lastMessageDocument) toLastMessage() messaging.LastMessage {
	return messaging.LastMessage{
		Content:   d.Content,
		CreatedAt: timestampToTime(d.CreatedAt),
		SenderID:  d.SenderID,
	}
}

type messageDocument struct {
	ID             string `bson:"_id"`
	ConversationID string `bson:"conversation_id"`
	SenderID       string `bson:"sender_id"`
	ReceiverID     string `bson:"receiver_id"`
	Content        string `bson:"content"`
	CreatedAt      int64  `bson:"created_at"`
	Read           bool   `bson:"read"`
	ListingID      string `bson:"listing_id,omitempty"`
	ListingTitle   string `bson:"listing_title,omitempty"`
}

func (d messageDocument) toMessage() messaging.Message {
	return messaging.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		ReceiverID:     d.ReceiverID,
		Content:        d.Content,
		CreatedAt:      timestampToTime(d.CreatedAt),
		Read:           d.Read,
		ListingID:      d.ListingID,
		ListingTitle:   d.ListingTitle,
	}
}

func mapMessagingErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return messaging.ErrNotFound
	}
	return fmt.Errorf("%w: %v", messaging.ErrUnavailable, err)
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ messaging.Gateway = (*MessagingGateway)(nil)
