package repositories

import (
	"context"

	"corai/internal/domain/models"
)

// MessageRepository is the persistence boundary for branch message logs.
// Reads exclude soft-deleted messages and order by (created_at, id) so the
// per-branch total order is stable under equal timestamps.
type MessageRepository interface {
	// CreateMessage inserts a message and fills in its generated ID and
	// timestamp.
	CreateMessage(ctx context.Context, msg *models.Message) error

	// GetMessage returns a non-deleted message by ID.
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)

	// ListMessagesByBranch returns the ordered, non-deleted messages of a
	// branch.
	ListMessagesByBranch(ctx context.Context, branchID string) ([]models.Message, error)

	// UpdateMessage applies the non-nil fields of update and returns the
	// updated message.
	UpdateMessage(ctx context.Context, messageID string, update *models.MessageUpdate) (*models.Message, error)

	// SoftDeleteMessage marks a message deleted without removing the row.
	SoftDeleteMessage(ctx context.Context, messageID string) error
}
