package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	domain "github.com/Bonshal/swapspot/internal/domain/messaging"
)

// ErrConversationUnknown is returned by Send when the target thread is not in
// the locally held summary list, so no receiver can be resolved.
var ErrConversationUnknown = errors.New("store: conversation not in local list")

// DetailState tracks the lifecycle of the open-conversation slice.
type DetailState string

const (
	DetailIdle    DetailState = "idle"
	DetailLoading DetailState = "loading"
	DetailLoaded  DetailState = "loaded"
	DetailError   DetailState = "error"
)

// Detail is the "current conversation" slice: one open thread's full message
// history plus the (possibly stale) summary it was opened from. Summary is nil
// when the thread was opened without being present in the local list; the
// history still renders, just without friendly participant fields.
type Detail struct {
	State          DetailState
	ConversationID string
	Summary        *domain.Conversation
	Messages       []domain.Message
	Err            error
}

// Store is the single writable source of truth for one viewer's conversation
// list, open-conversation detail and aggregate unread count. Every view reads
// from it and every mutation of shared messaging state goes through it; the
// gateway itself owns no state.
//
// Two refreshes in flight at once (poller overlapping a manual fetch) both
// write the list on completion and last-to-resolve wins. There is no sequence
// guard; at one write every few seconds the race is accepted.
type Store struct {
	gateway  domain.Gateway
	notifier Notifier
	logger   *slog.Logger
	viewerID string

	mu            sync.Mutex
	conversations []domain.Conversation
	unread        int
	current       Detail
	loading       bool
	err           error
}

// NewStore builds a store scoped to one authenticated viewer. One store lives
// per session: created at sign-in, dropped at sign-out.
func NewStore(gateway domain.Gateway, viewerID string, notifier Notifier, logger *slog.Logger) *Store {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
		viewerID: viewerID,
		current:  Detail{State: DetailIdle},
	}
}

// ViewerID returns the identity this store is scoped to.
func (s *Store) ViewerID() string { return s.viewerID }

// FetchConversations reloads the summary list wholesale and recomputes the
// unread total. On failure the previous list survives so a transient error
// never blanks a view that already has data; the error is kept for display.
func (s *Store) FetchConversations(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	conversations, err := s.gateway.Conversations(ctx, s.viewerID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = err
		s.logger.Warn("conversation list refresh failed", "viewer_id", s.viewerID, "error", err)
		return err
	}
	s.conversations = conversations
	s.unread = totalUnread(conversations)
	return nil
}

// RefreshUnread is the lighter-weight poller variant: it re-derives the unread
// total from a fresh summary fetch without touching the held list or detail.
func (s *Store) RefreshUnread(ctx context.Context) error {
	conversations, err := s.gateway.Conversations(ctx, s.viewerID)
	if err != nil {
		s.logger.Debug("unread refresh failed", "viewer_id", s.viewerID, "error", err)
		return err
	}
	s.mu.Lock()
	s.unread = totalUnread(conversations)
	s.mu.Unlock()
	return nil
}

// OpenConversation loads the full history of one thread and runs the
// mark-as-read sweep over inbound unread messages. The summary is looked up in
// the locally held list with no freshness guarantee; a missing summary only
// degrades display, not the history itself.
func (s *Store) OpenConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	s.current = Detail{
		State:          DetailLoading,
		ConversationID: conversationID,
		Summary:        s.findConversationLocked(conversationID),
	}
	s.mu.Unlock()

	messages, err := s.gateway.Messages(ctx, conversationID)

	s.mu.Lock()
	if s.current.ConversationID != conversationID {
		// Another thread was opened while this fetch was in flight; its
		// result is stale and must not clobber the newer detail.
		s.mu.Unlock()
		return err
	}
	if err != nil {
		s.current.State = DetailError
		s.current.Err = err
		s.err = err
		s.mu.Unlock()
		return err
	}
	s.current.State = DetailLoaded
	s.current.Messages = messages
	s.current.Err = nil

	sweep := s.current.messagesForSweep(s.viewerID)
	s.mu.Unlock()

	s.markReadSweep(ctx, conversationID, sweep)
	return nil
}

// markReadSweep submits each unread inbound message for read-marking
// individually. Failures are logged and skipped so one bad message never
// blocks the rest; the unread total is re-derived once at the end.
func (s *Store) markReadSweep(ctx context.Context, conversationID string, messageIDs []string) {
	if len(messageIDs) == 0 {
		return
	}
	for _, id := range messageIDs {
		s.applyLocalRead(id)
		if err := s.gateway.MarkRead(ctx, s.viewerID, id); err != nil {
			s.logger.Warn("mark read failed during sweep",
				"conversation_id", conversationID, "message_id", id, "error", err)
		}
	}
	if err := s.RefreshUnread(ctx); err != nil {
		s.logger.Debug("unread refresh after sweep failed", "error", err)
	}
}

// Send validates and delivers a message on an existing thread, appends the
// created message to the open detail and triggers a full summary refresh. The
// summary's LastMessage is deliberately not patched locally; the refresh is
// the single source of truth for denormalized fields, at the cost of a brief
// staleness window.
func (s *Store) Send(ctx context.Context, conversationID, content string) (domain.Message, error) {
	content, err := domain.ValidateContent(content)
	if err != nil {
		return domain.Message{}, err
	}

	s.mu.Lock()
	summary := s.findConversationLocked(conversationID)
	s.mu.Unlock()
	if summary == nil {
		return domain.Message{}, ErrConversationUnknown
	}

	message, err := s.gateway.Send(ctx, s.viewerID, summary.ParticipantID, content, summary.ListingID)
	if err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		return domain.Message{}, err
	}

	s.mu.Lock()
	if s.current.ConversationID == conversationID && s.current.State == DetailLoaded {
		// Ordering is monotonic server-side, so appending keeps CreatedAt order.
		s.current.Messages = append(s.current.Messages, message)
	}
	s.mu.Unlock()

	if err := s.notifier.MessageSent(ctx, message); err != nil {
		s.logger.Debug("message sent notification failed", "message_id", message.ID, "error", err)
	}

	if err := s.FetchConversations(ctx); err != nil {
		s.logger.Debug("summary refresh after send failed", "error", err)
	}
	return message, nil
}

// StartConversation opens a brand-new thread about a listing, seeded with one
// message, and refreshes the summary list so the thread shows up immediately.
func (s *Store) StartConversation(ctx context.Context, sellerID, listingID, content string) (string, error) {
	content, err := domain.ValidateContent(content)
	if err != nil {
		return "", err
	}
	conversationID, message, err := s.gateway.StartConversation(ctx, s.viewerID, sellerID, listingID, content)
	if err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		return "", err
	}
	if err := s.notifier.MessageSent(ctx, message); err != nil {
		s.logger.Debug("message sent notification failed", "message_id", message.ID, "error", err)
	}
	if err := s.FetchConversations(ctx); err != nil {
		s.logger.Debug("summary refresh after start failed", "error", err)
	}
	return conversationID, nil
}

// MarkRead optimistically flips the local read flag before the backend call
/// and never rolls back: a failed call leaves the flag set, logged as an
// accepted inconsistency until the next refresh. Backend errors (including a
// second call on an already-read message) are not surfaced to the caller.
func (s *Store) MarkRead(ctx context.Context, messageID string) {
	s.applyLocalRead(messageID)
	if err := s.gateway.MarkRead(ctx, s.viewerID, messageID); err != nil {
		s.logger.Warn("mark read failed", "message_id", messageID, "error", err)
	}
	if err := s.RefreshUnread(ctx); err != nil {
		s.logger.Debug("unread refresh after mark read failed", "error", err)
	}
}

// UnreadCount returns the derived unread total. It is recomputed only by
// FetchConversations, RefreshUnread and the mark-read paths, never per read.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Conversations returns a copy of the held summary list.
func (s *Store) Conversations() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Conversation(nil), s.conversations...)
}

// Current returns a snapshot of the open-conversation detail.
func (s *Store) Current() Detail {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.current
	snapshot.Messages = append([]domain.Message(nil), s.current.Messages...)
	if s.current.Summary != nil {
		summary := *s.current.Summary
		snapshot.Summary = &summary
	}
	return snapshot
}

// CloseConversation returns the detail slice to idle, e.g. when the thread
// view goes away.
func (s *Store) CloseConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Detail{State: DetailIdle}
}

// Loading reports whether a summary fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last displayable error, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ClearError dismisses the stored error, mirroring a dismissed toast.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
}

func (s *Store) applyLocalRead(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.current.Messages {
		if s.current.Messages[i].ID == messageID {
			s.current.Messages[i].Read = true
			return
		}
	}
}

func (s *Store) findConversationLocked(id string) *domain.Conversation {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			conversation := s.conversations[i]
			return &conversation
		}
	}
	return nil
}

func (d Detail) messagesForSweep(viewerID string) []string {
	var ids []string
	for _, message := range d.Messages {
		if !message.Read && message.ReceiverID == viewerID {
			ids = append(ids, message.ID)
		}
	}
	return ids
}

func totalUnread(conversations []domain.Conversation) int {
	total := 0
	for _, conversation := range conversations {
		total += conversation.UnreadCount
	}
	return total
}
