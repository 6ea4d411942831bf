package repositories

import (
	"context"

	"corai/internal/domain/models"
)

// ChatRepository is the persistence boundary for chats. Implementations
// scope every operation to the owning user and hide soft-deleted rows.
type ChatRepository interface {
	// CreateChat inserts a chat and fills in its generated ID and timestamps.
	CreateChat(ctx context.Context, chat *models.Chat) error

	// GetChat returns a chat owned by userID.
	GetChat(ctx context.Context, chatID, userID string) (*models.Chat, error)

	// ListChats returns all chats for a user, most recently updated first.
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)

	// UpdateChat persists title/preview/updated_at changes.
	UpdateChat(ctx context.Context, chat *models.Chat) error

	// TouchPreview updates the chat's preview text and bumps updated_at.
	TouchPreview(ctx context.Context, chatID, userID, preview string) error

	// DeleteChat soft-deletes a chat and returns the deleted record.
	DeleteChat(ctx context.Context, chatID, userID string) (*models.Chat, error)
}
