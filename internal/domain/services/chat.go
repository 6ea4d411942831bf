package services

import (
	"context"

	"corai/internal/domain/models"
)

// CreateChatRequest creates a chat together with its implicit root branch.
type CreateChatRequest struct {
	UserID string `json:"-"`
	Title  string `json:"title"`
}

// UpdateChatRequest renames a chat.
type UpdateChatRequest struct {
	Title string `json:"title"`
}

// ChatService manages chat sessions and their implicit root branches.
type ChatService interface {
	// CreateChat creates a chat plus its root branch atomically and returns
	// the detail view (so callers learn the main branch ID).
	CreateChat(ctx context.Context, req *CreateChatRequest) (*models.ChatDetail, error)

	// GetChat returns a chat with all branches and their ordered messages.
	GetChat(ctx context.Context, chatID, userID string) (*models.ChatDetail, error)

	// ListChats returns the sidebar projection of the user's chats.
	ListChats(ctx context.Context, userID string) ([]models.ChatListItem, error)

	// UpdateChat renames a chat.
	UpdateChat(ctx context.Context, chatID, userID string, req *UpdateChatRequest) (*models.Chat, error)

	// DeleteChat soft-deletes a chat; branches and messages become
	// unreachable through every read path.
	DeleteChat(ctx context.Context, chatID, userID string) (*models.Chat, error)

	// ValidateChat confirms the chat exists and belongs to userID.
	ValidateChat(ctx context.Context, chatID, userID string) error
}
