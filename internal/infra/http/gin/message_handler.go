package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"github.com/Bonshal/swapspot/internal/app/dto"
	appmsg "github.com/Bonshal/swapspot/internal/app/messaging"
	domainmsg "github.com/Bonshal/swapspot/internal/domain/messaging"
)

// MessageHTTP exposes the conversation list, open-thread and unread-badge
// endpoints. Every handler reads through the viewer's store so HTTP sees the
// same state the poller maintains.
type MessageHTTP interface {
	Inbox(c *gin.Context)
	Open(c *gin.Context)
	Close(c *gin.Context)
	Send(c *gin.Context)
	Start(c *gin.Context)
	MarkRead(c *gin.Context)
	UnreadBadge(c *gin.Context)
}

type MessageHandler struct {
	Manager *appmsg.Manager
	Logger  *slog.Logger
}

// Inbox refreshes and returns the viewer's conversation list with the
// aggregate unread count. A failed refresh still answers with the previously
// held list plus the error.
func (h *MessageHandler) Inbox(c *gin.Context) {
	store, _, ok := h.storeFor(c)
	if !ok {
		return
	}
	fetchErr := store.FetchConversations(c.Request.Context())
	response := dto.Inbox{
		Conversations: store.Conversations(),
		UnreadCount:   store.UnreadCount(),
		Loading:       store.Loading(),
	}
	if fetchErr != nil {
		response.Error = "could not refresh conversations"
	}
	c.JSON(http.StatusOK, response)
}

// Open loads one thread's history and sweeps its inbound unread messages.
func (h *MessageHandler) Open(c *gin.Context) {
	store, _, ok := h.storeFor(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	if err := store.OpenConversation(c.Request.Context(), conversationID); err != nil {
		h.respondMessagingError(c, err, "open conversation", "conversation_id", conversationID)
		return
	}
	c.JSON(http.StatusOK, mapDetail(store.Current()))
}

// Close returns the open-thread slice to idle.
func (h *MessageHandler) Close(c *gin.Context) {
	store, _, ok := h.storeFor(c)
	if !ok {
		return
	}
	store.CloseConversation()
	c.Status(http.StatusNoContent)
}

// Send posts a message on an existing thread.
func (h *MessageHandler) Send(c *gin.Context) {
	store, _, ok := h.storeFor(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	message, err := store.Send(c.Request.Context(), conversationID, req.Content)
	if err != nil {
		h.respondMessagingError(c, err, "send message", "conversation_id", conversationID)
		return
	}
	c.JSON(http.StatusCreated, message)
}

// Start opens a brand-new thread with a seller about a listing.
func (h *MessageHandler) Start(c *gin.Context) {
	store, viewer, ok := h.storeFor(c)
	if !ok {
		return
	}
	var req dto.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(req.SellerID) == viewer.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot message yourself"})
		return
	}
	conversationID, err := store.StartConversation(c.Request.Context(), req.SellerID, req.ListingID, req.Content)
	if err != nil {
		h.respondMessagingError(c, err, "start conversation", "listing_id", req.ListingID)
		return
	}
	response := dto.StartConversationResponse{ConversationID: conversationID}
	if detail := store.Current(); detail.ConversationID == conversationID && len(detail.Messages) > 0 {
		response.Message = detail.Messages[0]
	}
	c.JSON(http.StatusCreated, response)
}

// MarkRead flips one message to read. The store marks optimistically and does
// not surface backend failures, so this endpoint always acknowledges.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	store, _, ok := h.storeFor(c)
	if !ok {
		return
	}
	messageID := strings.TrimSpace(c.Param("id"))
	if messageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message id is required"})
		return
	}
	store.MarkRead(c.Request.Context(), messageID)
	c.JSON(http.StatusOK, dto.UnreadBadge{UnreadCount: store.UnreadCount()})
}

// UnreadBadge answers from the store's cached total without hitting the
// backend; the poller keeps it current.
func (h *MessageHandler) UnreadBadge(c *gin.Context) {
	store, _, ok := h.storeFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.UnreadBadge{UnreadCount: store.UnreadCount()})
}

func (h *MessageHandler) storeFor(c *gin.Context) (*appmsg.Store, principal, bool) {
	viewer, ok := requireAuth(c)
	if !ok {
		return nil, principal{}, false
	}
	if h.Manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return nil, principal{}, false
	}
	return h.Manager.Ensure(viewer.ID), viewer, true
}

func (h *MessageHandler) respondMessagingError(c *gin.Context, err error, action string, attrs ...any) {
	switch {
	case errors.Is(err, domainmsg.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message content is required"})
	case errors.Is(err, appmsg.ErrConversationUnknown), errors.Is(err, domainmsg.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, domainmsg.ErrNotReceiver):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, domainmsg.ErrUnavailable):
		if h.Logger != nil {
			h.Logger.Error("messaging backend unavailable", append([]any{"action", action, "error", err}, attrs...)...)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
	default:
		if h.Logger != nil {
			h.Logger.Error("messaging call failed", append([]any{"action", action, "error", err}, attrs...)...)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func mapDetail(detail appmsg.Detail) dto.ConversationDetail {
	response := dto.ConversationDetail{
		ConversationID: detail.ConversationID,
		Summary:        detail.Summary,
		Messages:       detail.Messages,
		State:          string(detail.State),
	}
	if detail.Err != nil {
		response.Error = "could not load conversation"
	}
	return response
}

var _ MessageHTTP = (*MessageHandler)(nil)
