// Package message implements the per-branch message log service. Reads
// merge the persisted rows with the live streaming overlay so an in-flight
// assistant reply is visible without waiting for its next database flush.
package message

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"corai/internal/config"
	"corai/internal/domain"
	"corai/internal/domain/models"
	"corai/internal/domain/repositories"
	"corai/internal/domain/services"
	"corai/internal/state"
)

// messageService implements the MessageService interface
type messageService struct {
	messageRepo repositories.MessageRepository
	branchRepo  repositories.BranchRepository
	chatRepo    repositories.ChatRepository
	overlay     *state.MessageStore
	logger      *slog.Logger
}

// NewMessageService creates a new message service. overlay is the shared
// live-message store also written by the streaming service.
func NewMessageService(
	messageRepo repositories.MessageRepository,
	branchRepo repositories.BranchRepository,
	chatRepo repositories.ChatRepository,
	overlay *state.MessageStore,
	logger *slog.Logger,
) services.MessageService {
	return &messageService{
		messageRepo: messageRepo,
		branchRepo:  branchRepo,
		chatRepo:    chatRepo,
		overlay:     overlay,
		logger:      logger,
	}
}

// authorizeBranch resolves a branch and confirms the owning chat belongs to
// userID. Every service entry point goes through this check.
func (s *messageService) authorizeBranch(ctx context.Context, branchID, userID string) (*models.Branch, error) {
	branch, err := s.branchRepo.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if _, err := s.chatRepo.GetChat(ctx, branch.ChatID, userID); err != nil {
		return nil, err
	}
	return branch, nil
}

// ListMessages returns the branch's messages merged with the streaming
// overlay.
func (s *messageService) ListMessages(ctx context.Context, branchID, userID string) ([]models.Message, error) {
	if _, err := s.authorizeBranch(ctx, branchID, userID); err != nil {
		return nil, err
	}

	persisted, err := s.messageRepo.ListMessagesByBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}

	return state.MergeMessages(persisted, s.overlay.Branch(branchID)), nil
}

// AddMessage persists a message. A user-role message also refreshes the
// chat preview and bumps the branch.
func (s *messageService) AddMessage(ctx context.Context, req *services.AddMessageRequest) (*models.Message, error) {
	if err := s.validateAddMessageRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	branch, err := s.authorizeBranch(ctx, req.BranchID, req.UserID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		BranchID:        req.BranchID,
		ParentMessageID: req.ParentMessageID,
		Content:         req.Content,
		Role:            models.MessageRole(req.Role),
		ModelUsed:       req.ModelUsed,
		TokenCount:      req.TokenCount,
		IsTyping:        req.IsTyping,
		CreatedAt:       time.Now(),
	}
	if err := s.messageRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.branchRepo.TouchBranch(ctx, req.BranchID); err != nil {
		s.logger.Warn("failed to touch branch", "branch_id", req.BranchID, "error", err)
	}

	if msg.Role == models.RoleUser {
		preview := Preview(msg.Content)
		if err := s.chatRepo.TouchPreview(ctx, branch.ChatID, req.UserID, preview); err != nil {
			s.logger.Warn("failed to update chat preview", "chat_id", branch.ChatID, "error", err)
		}
	}

	s.logger.Info("message added",
		"id", msg.ID,
		"branch_id", req.BranchID,
		"role", msg.Role,
		"is_typing", msg.IsTyping,
	)
	return msg, nil
}

// UpdateMessage persists an edit synchronously.
func (s *messageService) UpdateMessage(ctx context.Context, messageID, userID string, update *models.MessageUpdate) (*models.Message, error) {
	if update == nil || (update.Content == nil && update.IsTyping == nil) {
		return nil, fmt.Errorf("%w: no fields to update", domain.ErrValidation)
	}

	msg, err := s.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeBranch(ctx, msg.BranchID, userID); err != nil {
		return nil, err
	}

	updated, err := s.messageRepo.UpdateMessage(ctx, messageID, update)
	if err != nil {
		return nil, err
	}

	s.logger.Info("message updated", "id", messageID, "user_id", userID)
	return updated, nil
}

// RemoveMessage soft-deletes a message.
func (s *messageService) RemoveMessage(ctx context.Context, messageID, userID string) error {
	msg, err := s.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if _, err := s.authorizeBranch(ctx, msg.BranchID, userID); err != nil {
		return err
	}

	if err := s.messageRepo.SoftDeleteMessage(ctx, messageID); err != nil {
		return err
	}
	s.overlay.Drop(msg.BranchID, messageID)

	s.logger.Info("message removed", "id", messageID, "user_id", userID)
	return nil
}

func (s *messageService) validateAddMessageRequest(req *services.AddMessageRequest) error {
	return validation.Errors{
		"branch_id": validation.Validate(req.BranchID, validation.Required),
		"user_id":   validation.Validate(req.UserID, validation.Required),
		"content":   validation.Validate(req.Content, validation.Required.When(!req.IsTyping)),
		"role": validation.Validate(req.Role,
			validation.Required,
			validation.By(func(value interface{}) error {
				if !models.ValidRole(models.MessageRole(req.Role)) {
					return fmt.Errorf("must be user, assistant, or system")
				}
				return nil
			}),
		),
	}.Filter()
}

// Preview derives the sidebar preview from a message: the first 50
// characters, with an ellipsis when truncated.
func Preview(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= config.ChatPreviewLength {
		return content
	}
	return string(runes[:config.ChatPreviewLength]) + "..."
}
