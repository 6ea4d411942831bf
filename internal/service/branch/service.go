// Package branch implements the branch tree service: CRUD on branches and
// the fan-out workflow that splits a conversation into parallel siblings.
package branch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"corai/internal/config"
	"corai/internal/domain"
	"corai/internal/domain/models"
	"corai/internal/domain/repositories"
	"corai/internal/domain/services"
	"corai/internal/state"
)

// branchService implements the BranchService interface. It keeps one
// BranchStore per chat mirroring persisted branches, so tree invariants are
// checked on every structural change and the active pointer survives
// between requests.
type branchService struct {
	branchRepo   repositories.BranchRepository
	messageRepo  repositories.MessageRepository
	chatRepo     repositories.ChatRepository
	txManager    repositories.TransactionManager
	messageSvc   services.MessageService
	streamingSvc services.StreamingService
	logger       *slog.Logger

	storeMu sync.Mutex
	stores  map[string]*state.BranchStore
}

// NewBranchService creates a new branch service
func NewBranchService(
	branchRepo repositories.BranchRepository,
	messageRepo repositories.MessageRepository,
	chatRepo repositories.ChatRepository,
	txManager repositories.TransactionManager,
	messageSvc services.MessageService,
	streamingSvc services.StreamingService,
	logger *slog.Logger,
) services.BranchService {
	return &branchService{
		branchRepo:   branchRepo,
		messageRepo:  messageRepo,
		chatRepo:     chatRepo,
		txManager:    txManager,
		messageSvc:   messageSvc,
		streamingSvc: streamingSvc,
		logger:       logger,
		stores:       make(map[string]*state.BranchStore),
	}
}

// authorizeChat confirms the chat exists and belongs to userID.
func (s *branchService) authorizeChat(ctx context.Context, chatID, userID string) error {
	_, err := s.chatRepo.GetChat(ctx, chatID, userID)
	return err
}

// store returns the chat's branch store, creating it on first use.
func (s *branchService) store(chatID string) *state.BranchStore {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	st, ok := s.stores[chatID]
	if !ok {
		st = state.NewBranchStore(chatID)
		s.stores[chatID] = st
	}
	return st
}

// checkTree validates the store's invariants after a structural change. A
// violation means the persisted tree itself is inconsistent, so it is
// logged loudly rather than swallowed.
func (s *branchService) checkTree(chatID string) {
	if err := s.store(chatID).Validate(); err != nil {
		s.logger.Error("branch tree invariant violated", "chat_id", chatID, "error", err)
	}
}

// ListBranches returns all branches of a chat with nested messages.
func (s *branchService) ListBranches(ctx context.Context, chatID, userID string) ([]models.BranchWithMessages, error) {
	if err := s.authorizeChat(ctx, chatID, userID); err != nil {
		return nil, err
	}

	branches, err := s.branchRepo.ListBranchesByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	s.store(chatID).Replace(branches)
	s.checkTree(chatID)

	out := make([]models.BranchWithMessages, 0, len(branches))
	for _, branch := range branches {
		msgs, err := s.messageSvc.ListMessages(ctx, branch.ID, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.BranchWithMessages{Branch: branch, Messages: msgs})
	}
	return out, nil
}

// CreateBranch creates one branch under an explicit parent.
func (s *branchService) CreateBranch(ctx context.Context, req *services.CreateBranchRequest) (*models.Branch, error) {
	if err := s.validateCreateBranchRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := s.authorizeChat(ctx, req.ChatID, req.UserID); err != nil {
		return nil, err
	}

	if req.ParentBranchID != nil {
		parent, err := s.branchRepo.GetBranch(ctx, *req.ParentBranchID)
		if err != nil {
			return nil, err
		}
		if parent.ChatID != req.ChatID {
			return nil, &domain.ValidationError{Message: "parent branch belongs to a different chat"}
		}
	}

	color := req.Color
	if color == "" {
		color = models.DefaultBranchColors[0]
	}

	branch := &models.Branch{
		ChatID:         req.ChatID,
		ParentBranchID: req.ParentBranchID,
		Name:           strings.TrimSpace(req.Name),
		Color:          color,
	}
	if err := s.branchRepo.CreateBranch(ctx, branch); err != nil {
		return nil, err
	}
	s.store(req.ChatID).Add(*branch)

	s.logger.Info("branch created",
		"id", branch.ID,
		"chat_id", req.ChatID,
		"parent_branch_id", req.ParentBranchID,
	)
	return branch, nil
}

// UpdateBranch persists name/color/metadata changes.
func (s *branchService) UpdateBranch(ctx context.Context, branchID, userID string, update *models.BranchUpdate) (*models.Branch, error) {
	if update == nil || update.IsEmpty() {
		return nil, fmt.Errorf("%w: no fields to update", domain.ErrValidation)
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if err := validation.Validate(name,
			validation.Required,
			validation.Length(1, config.MaxBranchNameLength),
		); err != nil {
			return nil, fmt.Errorf("%w: name: %v", domain.ErrValidation, err)
		}
		update.Name = &name
	}

	branch, err := s.branchRepo.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeChat(ctx, branch.ChatID, userID); err != nil {
		return nil, err
	}

	updated, err := s.branchRepo.UpdateBranch(ctx, branchID, update)
	if err != nil {
		return nil, err
	}
	s.store(branch.ChatID).Update(*updated)

	s.logger.Info("branch updated", "id", branchID, "user_id", userID)
	return updated, nil
}

// DeleteBranch removes a non-root, childless branch and its messages. The
// root branch is load-bearing for the whole chat and cannot be removed;
// branches with children must have the subtree removed bottom-up.
func (s *branchService) DeleteBranch(ctx context.Context, branchID, userID string) error {
	branch, err := s.branchRepo.GetBranch(ctx, branchID)
	if err != nil {
		return err
	}
	if err := s.authorizeChat(ctx, branch.ChatID, userID); err != nil {
		return err
	}

	if branch.IsRoot() {
		return &domain.ValidationError{Message: "the root branch cannot be deleted"}
	}

	children, err := s.branchRepo.CountChildren(ctx, branchID)
	if err != nil {
		return err
	}
	if children > 0 {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("branch has %d child branches, delete them first", children),
			ResourceType: "branch",
			ResourceID:   branchID,
		}
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.branchRepo.DeleteBranch(txCtx, branchID)
	})
	if err != nil {
		return err
	}
	s.store(branch.ChatID).Remove(branchID)
	s.checkTree(branch.ChatID)

	s.logger.Info("branch deleted", "id", branchID, "chat_id", branch.ChatID)
	return nil
}

func (s *branchService) validateCreateBranchRequest(req *services.CreateBranchRequest) error {
	return validation.Errors{
		"chat_id": validation.Validate(req.ChatID, validation.Required),
		"user_id": validation.Validate(req.UserID, validation.Required),
		"name": validation.Validate(strings.TrimSpace(req.Name),
			validation.Required,
			validation.Length(1, config.MaxBranchNameLength),
		),
	}.Filter()
}
