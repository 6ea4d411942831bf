package repositories

import (
	"context"

	"corai/internal/domain/models"
)

// BranchRepository is the persistence boundary for conversation branches.
type BranchRepository interface {
	// CreateBranch inserts a branch and fills in its generated ID and
	// timestamps. Parent validation (same chat) is enforced by the schema.
	CreateBranch(ctx context.Context, branch *models.Branch) error

	// GetBranch returns a branch by ID.
	GetBranch(ctx context.Context, branchID string) (*models.Branch, error)

	// ListBranchesByChat returns all branches of a chat in creation order.
	ListBranchesByChat(ctx context.Context, chatID string) ([]models.Branch, error)

	// UpdateBranch applies the non-nil fields of update and bumps
	// updated_at. Returns the updated branch.
	UpdateBranch(ctx context.Context, branchID string, update *models.BranchUpdate) (*models.Branch, error)

	// TouchBranch bumps a branch's updated_at.
	TouchBranch(ctx context.Context, branchID string) error

	// CountChildren returns the number of direct children of a branch.
	CountChildren(ctx context.Context, branchID string) (int, error)

	// DeleteBranch removes a branch row and its messages. Callers are
	// responsible for the root/children policy checks.
	DeleteBranch(ctx context.Context, branchID string) error
}
