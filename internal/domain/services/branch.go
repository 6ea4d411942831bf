package services

import (
	"context"

	"corai/internal/domain/models"
)

// CreateBranchRequest creates a single branch under a parent.
type CreateBranchRequest struct {
	ChatID         string  `json:"-"`
	UserID         string  `json:"-"`
	Name           string  `json:"name"`
	Color          string  `json:"color"`
	ParentBranchID *string `json:"parent_branch_id"`
}

// SeedMessage is the fork-point message replicated into each new branch of
// a fan-out. Role is preserved from the original message.
type SeedMessage struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// FanoutRequest fans a conversation out into 1-5 sibling branches from one
// fork point. CurrentBranchID names the branch the user is viewing; when
// nil the chat's first branch is used as the common parent.
type FanoutRequest struct {
	ChatID          string                      `json:"-"`
	UserID          string                      `json:"-"`
	Config          models.BranchCreationConfig `json:"config"`
	ForkMessageID   string                      `json:"fork_message_id"`
	ParentMessage   *SeedMessage                `json:"parent_message,omitempty"`
	CurrentBranchID *string                     `json:"current_branch_id,omitempty"`
	Model           *string                     `json:"model,omitempty"`
}

// FanoutResult reports the created branches. ActiveBranchID is the first new
// branch; the caller navigates the view there.
type FanoutResult struct {
	Branches       []models.Branch `json:"branches"`
	ActiveBranchID string          `json:"active_branch_id"`
}

// BranchService manages a chat's branch tree.
type BranchService interface {
	// ListBranches returns all branches of a chat with nested messages.
	ListBranches(ctx context.Context, chatID, userID string) ([]models.BranchWithMessages, error)

	// CreateBranch creates one branch under an explicit parent.
	CreateBranch(ctx context.Context, req *CreateBranchRequest) (*models.Branch, error)

	// UpdateBranch persists name/color/metadata changes.
	UpdateBranch(ctx context.Context, branchID, userID string, update *models.BranchUpdate) (*models.Branch, error)

	// DeleteBranch removes a non-root, childless branch and its messages.
	// Deleting the root or a branch with children is rejected.
	DeleteBranch(ctx context.Context, branchID, userID string) error

	// Fanout runs the branch creation workflow: sequential branch creation,
	// per-branch seeding, and independent assistant generations.
	Fanout(ctx context.Context, req *FanoutRequest) (*FanoutResult, error)
}
