package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/Bonshal/swapspot/internal/domain/messaging"
)

type fakeGateway struct {
	mu            sync.Mutex
	conversations []domain.Conversation
	messages      map[string][]domain.Message

	convErr error
	msgErr  error
	sendErr error
	markErr error

	convCalls int
	sendCalls int
	markCalls []string
}

func (g *fakeGateway) Conversations(ctx context.Context, viewerID string) ([]domain.Conversation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.convCalls++
	if g.convErr != nil {
		return nil, g.convErr
	}
	return append([]domain.Conversation(nil), g.conversations...), nil
}

func (g *fakeGateway) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.msgErr != nil {
		return nil, g.msgErr
	}
	return append([]domain.Message(nil), g.messages[conversationID]...), nil
}

func (g *fakeGateway) Send(ctx context.Context, senderID, receiverID, content, listingID string) (domain.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sendCalls++
	if g.sendErr != nil {
		return domain.Message{}, g.sendErr
	}
	message := domain.Message{
		ID:         "m-new",
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now(),
		ListingID:  listingID,
	}
	return message, nil
}

func (g *fakeGateway) MarkRead(ctx context.Context, viewerID, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.markCalls = append(g.markCalls, messageID)
	if g.markErr != nil {
		return g.markErr
	}
	for conversationID, messages := range g.messages {
		for i := range messages {
			if messages[i].ID == messageID && !messages[i].Read {
				messages[i].Read = true
				for j := range g.conversations {
					if g.conversations[j].ID == conversationID && g.conversations[j].UnreadCount > 0 {
						g.conversations[j].UnreadCount--
					}
				}
			}
		}
	}
	return nil
}

func (g *fakeGateway) StartConversation(ctx context.Context, viewerID, sellerID, listingID, content string) (string, domain.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	message := domain.Message{
		ID:         "m-first",
		SenderID:   viewerID,
		ReceiverID: sellerID,
		Content:    content,
		ListingID:  listingID,
		CreatedAt:  time.Now(),
	}
	conversation := domain.Conversation{
		ID:            "c-new",
		ParticipantID: sellerID,
		ListingID:     listingID,
	}
	g.conversations = append(g.conversations, conversation)
	return conversation.ID, message, nil
}

func twoConversationFixture() *fakeGateway {
	return &fakeGateway{
		conversations: []domain.Conversation{
			{ID: "c1", ParticipantID: "seller-1", UnreadCount: 3, ListingID: "l1"},
			{ID: "c2", ParticipantID: "seller-2", UnreadCount: 0},
		},
		messages: map[string][]domain.Message{
			"c1": {
				{ID: "m1", ConversationID: "c1", SenderID: "seller-1", ReceiverID: "viewer", Content: "hi", Read: false},
				{ID: "m2", ConversationID: "c1", SenderID: "seller-1", ReceiverID: "viewer", Content: "still there?", Read: false},
				{ID: "m3", ConversationID: "c1", SenderID: "seller-1", ReceiverID: "viewer", Content: "ping", Read: false},
				{ID: "m4", ConversationID: "c1", SenderID: "viewer", ReceiverID: "seller-1", Content: "yes", Read: true},
			},
			"c2": {
				{ID: "m5", ConversationID: "c2", SenderID: "viewer", ReceiverID: "seller-2", Content: "offer", Read: true},
			},
		},
	}
}

func TestFetchConversationsAggregatesUnread(t *testing.T) {
	gateway := twoConversationFixture()
	store := NewStore(gateway, "viewer", nil, nil)

	if err := store.FetchConversations(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := store.UnreadCount(); got != 3 {
		t.Fatalf("unread = %d, want 3", got)
	}
	if got := len(store.Conversations()); got != 2 {
		t.Fatalf("conversations = %d, want 2", got)
	}
}

func TestFetchFailurePreservesPreviousList(t *testing.T) {
	gateway := twoConversationFixture()
	store := NewStore(gateway, "viewer", nil, nil)

	if err := store.FetchConversations(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	gateway.mu.Lock()
	gateway.convErr = errors.New("backend down")
	gateway.mu.Unlock()

	if err := store.FetchConversations(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if got := len(store.Conversations()); got != 2 {
		t.Fatalf("list blanked on failure: %d conversations left", got)
	}
	if store.Err() == nil {
		t.Fatal("expected stored error")
	}

	store.ClearError()
	if store.Err() != nil {
		t.Fatal("error not cleared")
	}
}

func TestOpenConversationSweepsUnread(t *testing.T) {
	gateway := twoConversationFixture()
	store := NewStore(gateway, "viewer", nil, nil)

	if err := store.FetchConversations(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := store.OpenConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	if got := len(gateway.markCalls); got != 3 {
		t.Fatalf("mark read calls = %d, want 3 (one per inbound unread)", got)
	}
	if got := store.UnreadCount(); got != 0 {
		t.Fatalf("unread after sweep = %d, want 0", got)
	}

	detail := store.Current()
	if detail.State != DetailLoaded {
		t.Fatalf("detail state = %q, want loaded", detail.State)
	}
	for _, message := range detail.Messages {
		if message.ReceiverID == "viewer" && !message.Read {
			t.Fatalf("message %s still unread locally", message.ID)
		}
	}
	if detail.Summary == nil || detail.Summary.ID != "c1" {
		t.Fatal("summary not resolved from local list")
	}
}

func TestOpenConversationSweepSurvivesMarkFailures(t *testing.T) {
	gateway := twoConversationFixture()
	gateway.markErr = errors.New("mark rejected")
	store := NewStore(gateway, "viewer", nil, nil)

	if err := store.FetchConversations(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := store.OpenConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("open should not surface sweep failures: %v", err)
	}
	if got := len(gateway.markCalls); got != 3 {
		t.Fatalf("sweep stopped early: %d calls, want 3", got)
	}
}

func TestSendRejectsWhitespaceBeforeGateway(t *testing.T) {
	gateway := twoConversationFixture()
	store := NewStore(gateway, "viewer", nil, nil)

	if err := store.FetchConversations(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := store.Send(context.Background(), "c1", "   \n\t "); !errors.Is(err, domain.ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
	if gateway.sendCalls != 0 {
		t.Fatalf("gateway called %d times for blank content", gateway.sendCalls)
	}
}

func TestSendUnknownConversation(t *testing.T) {
	gateway := twoConversationFixture()
	store := NewStore(gateway, "viewer", nil, nil)

	if _, err := store.Send(context.Background(), "c1", "hello"); !errors.Is(err, ErrConversationUnknown) {
		t.Fatalf("err = %v, want ErrConversationUnknown", err)
	}
}

func TestSendAppendsToOpenDetailAndRefreshes(t *testing.T) {
	gateway := twoConversationFixture()
	store := NewStore(gateway, "viewer", nil, nil)

	if err := store.FetchConversations(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := store.OpenConversation(context.Background(), "c2"); err != nil {
		t.Fatalf("open: %v", err)
	}
	before := gateway.convCalls

	message, err := store.Send(context.Background(), "c2", "  trimmed body  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if message.Content != "trimmed body" {
		t.Fatalf("content = %q, want trimmed", message.Content)
	}
	if message.ReceiverID != "seller-2" {
		t.Fatalf("receiver = %q, want resolved from summary", message.ReceiverID)
	}

	detail := store.Current()
	if got := len(detail.Messages); got != 2 {
		t.Fatalf("detail messages = %d, want history + appended", got)
	}
	if detail.Messages[len(detail.Messages)-1].ID != "m-new" {
		t.Fatal("sent message not appended last")
	}
	if gateway.convCalls <= before {
		t.Fatal("send did not trigger a summary refresh")
	}
}

func TestStartConversationRefreshesList(t *testing.T) {
	gateway := twoConversationFixture()
	store := NewStore(gateway, "viewer", nil, nil)

	if err := store.FetchConversations(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	conversationID, err := store.StartConversation(context.Background(), "seller-3", "l9", "is this available?")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if conversationID != "c-new" {
		t.Fatalf("conversation id = %q", conversationID)
	}
	if got := len(store.Conversations()); got != 3 {
		t.Fatalf("conversations = %d, want new thread visible after refresh", got)
	}
}

func TestStartConversationRejectsBlankContent(t *testing.T) {
	gateway := twoConversationFixture()
	store := NewStore(gateway, "viewer", nil, nil)

	if _, err := store.StartConversation(context.Background(), "seller-3", "l9", ""); !errors.Is(err, domain.ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
}

func TestMarkReadIsOptimisticAndSilent(t *testing.T) {
	gateway := twoConversationFixture()
	store := NewStore(gateway, "viewer", nil, nil)

	if err := store.FetchConversations(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	gateway.markErr = errors.New("already read")
	if err := store.OpenConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	// The backend rejected every mark, yet the local flags are set.
	for _, message := range store.Current().Messages {
		if message.ReceiverID == "viewer" && !message.Read {
			t.Fatalf("local read flag not set for %s", message.ID)
		}
	}

	// Direct MarkRead on a failing backend must not panic or surface anything.
	store.MarkRead(context.Background(), "m1")
}

func TestCloseConversationResetsDetail(t *testing.T) {
	gateway := twoConversationFixture()
	store := NewStore(gateway, "viewer", nil, nil)

	if err := store.FetchConversations(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := store.OpenConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	store.CloseConversation()
	if detail := store.Current(); detail.State != DetailIdle || detail.ConversationID != "" {
		t.Fatalf("detail not reset: %+v", detail)
	}
}

func TestOpenConversationErrorKeepsListIntact(t *testing.T) {
	gateway := twoConversationFixture()
	store := NewStore(gateway, "viewer", nil, nil)

	if err := store.FetchConversations(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	gateway.mu.Lock()
	gateway.msgErr = errors.New("history unavailable")
	gateway.mu.Unlock()

	if err := store.OpenConversation(context.Background(), "c1"); err == nil {
		t.Fatal("expected open error")
	}
	if detail := store.Current(); detail.State != DetailError {
		t.Fatalf("detail state = %q, want error", detail.State)
	}
	if got := len(store.Conversations()); got != 2 {
		t.Fatalf("summary list disturbed by detail failure: %d", got)
	}
}
