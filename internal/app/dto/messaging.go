package dto

import (
	domainmsg "github.com/Bonshal/swapspot/internal/domain/messaging"
)

// Inbox is the viewer's conversation list plus the aggregate unread badge.
type Inbox struct {
	Conversations []domainmsg.Conversation `json:"conversations"`
	UnreadCount   int                      `json:"unread_count"`
	Loading       bool                     `json:"loading"`
	Error         string                   `json:"error,omitempty"`
}

// ConversationDetail is one open thread with its full history.
type ConversationDetail struct {
	ConversationID string                  `json:"conversation_id"`
	Summary        *domainmsg.Conversation `json:"summary,omitempty"`
	Messages       []domainmsg.Message     `json:"messages"`
	State          string                  `json:"state"`
	Error          string                  `json:"error,omitempty"`
}

type UnreadBadge struct {
	UnreadCount int `json:"unread_count"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type StartConversationRequest struct {
	SellerID  string `json:"seller_id" binding:"required"`
	ListingID string `json:"listing_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

type StartConversationResponse struct {
	ConversationID string            `json:"conversation_id"`
	Message        domainmsg.Message `json:"message"`
}
