package services

import (
	"context"

	"corai/internal/domain/models"
)

// AddMessageRequest appends a message to a branch. IsTyping marks an
// assistant placeholder whose content is still streaming in.
type AddMessageRequest struct {
	BranchID        string  `json:"-"`
	UserID          string  `json:"-"`
	Content         string  `json:"content"`
	Role            string  `json:"role"`
	ParentMessageID *string `json:"parent_message_id,omitempty"`
	ModelUsed       *string `json:"model_used,omitempty"`
	TokenCount      *int    `json:"token_count,omitempty"`
	IsTyping        bool    `json:"is_typing"`
}

// MessageService manages per-branch message logs, overlaying live streaming
// state on top of persisted rows.
type MessageService interface {
	// ListMessages returns the branch's messages merged with any in-flight
	// streaming overlay, so a stale read never clobbers a live stream.
	ListMessages(ctx context.Context, branchID, userID string) ([]models.Message, error)

	// AddMessage persists a message and returns it with its assigned ID.
	// A user-role message also updates the owning chat's preview.
	AddMessage(ctx context.Context, req *AddMessageRequest) (*models.Message, error)

	// UpdateMessage is the settled-change path: it persists synchronously.
	UpdateMessage(ctx context.Context, messageID, userID string, update *models.MessageUpdate) (*models.Message, error)

	// RemoveMessage soft-deletes a message.
	RemoveMessage(ctx context.Context, messageID, userID string) error
}
