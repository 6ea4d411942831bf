// Package chat implements the chat session service: chat CRUD plus the
// implicit root branch every chat starts with.
package chat

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
)

// chatService implements the ChatService interface
type chatService struct {
	chatRepo    repositories.ChatRepository
	branchRepo  repositories.BranchRepository
	messageRepo repositories.MessageRepository
	txManager   repositories.TransactionManager
	messageSvc  services.MessageService
	logger      *slog.Logger
}

// NewChatService creates a new chat service
func NewChatService(
	chatRepo repositories.ChatRepository,
	branchRepo repositories.BranchRepository,
	messageRepo repositories.MessageRepository,
	txManager repositories.TransactionManager,
	messageSvc services.MessageService,
	logger *slog.Logger,
) services.ChatService {
	return &chatService{
		chatRepo:    chatRepo,
		branchRepo:  branchRepo,
		messageRepo: messageRepo,
		txManager:   txManager,
		messageSvc:  messageSvc,
		logger:      logger,
	}
}

// CreateChat creates a chat and its root branch in one transaction. A chat
// without a root branch is never observable.
func (s *chatService) CreateChat(ctx context.Context, req *services.CreateChatRequest) (*models.ChatDetail, error) {
	if err := s.validateCreateChatRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New Chat"
	}

	chat := &models.Chat{
		UserID:    req.UserID,
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	root := &models.Branch{
		Name:  models.RootBranchName,
		Color: models.DefaultBranchColors[0],
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.chatRepo.CreateChat(txCtx, chat); err != nil {
			return err
		}
		root.ChatID = chat.ID
		return s.branchRepo.CreateBranch(txCtx, root)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("chat created",
		"id", chat.ID,
		"title", chat.Title,
		"root_branch_id", root.ID,
		"user_id", req.UserID,
	)

	return &models.ChatDetail{
		Chat:         *chat,
		MainBranchID: root.ID,
		Branches: []models.BranchWithMessages{
			{Branch: *root, Messages: []models.Message{}},
		},
	}, nil
}

// GetChat returns a chat with every branch and its ordered messages.
func (s *chatService) GetChat(ctx context.Context, chatID, userID string) (*models.ChatDetail, error) {
	chat, err := s.chatRepo.GetChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	branches, err := s.branchRepo.ListBranchesByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	detail := &models.ChatDetail{
		Chat:     *chat,
		Branches: make([]models.BranchWithMessages, 0, len(branches)),
	}
	for _, branch := range branches {
		if branch.IsRoot() {
			detail.MainBranchID = branch.ID
		}
		msgs, err := s.messageSvc.ListMessages(ctx, branch.ID, userID)
		if err != nil {
			return nil, err
		}
		detail.Branches = append(detail.Branches, models.BranchWithMessages{
			Branch:   branch,
			Messages: msgs,
		})
	}

	return detail, nil
}

// ListChats returns the sidebar projection of the user's chats.
func (s *chatService) ListChats(ctx context.Context, userID string) ([]models.ChatListItem, error) {
	chats, err := s.chatRepo.ListChats(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]models.ChatListItem, 0, len(chats))
	for _, c := range chats {
		items = append(items, models.ChatListItem{
			ID:        c.ID,
			Title:     c.Title,
			Preview:   c.Preview,
			UpdatedAt: c.UpdatedAt,
		})
	}
	return items, nil
}

// UpdateChat renames a chat.
func (s *chatService) UpdateChat(ctx context.Context, chatID, userID string, req *services.UpdateChatRequest) (*models.Chat, error) {
	title := strings.TrimSpace(req.Title)
	if err := validation.Validate(title,
		validation.Required,
		validation.Length(1, config.MaxChatTitleLength),
	); err != nil {
		return nil, fmt.Errorf("%w: title: %v", domain.ErrValidation, err)
	}

	chat, err := s.chatRepo.GetChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	chat.Title = title
	chat.UpdatedAt = time.Now()
	if err := s.chatRepo.UpdateChat(ctx, chat); err != nil {
		return nil, err
	}

	s.logger.Info("chat renamed", "id", chatID, "user_id", userID)
	return chat, nil
}

// DeleteChat soft-deletes a chat. Branch and message rows stay in place but
// become unreachable through every read path.
func (s *chatService) DeleteChat(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	chat, err := s.chatRepo.DeleteChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("chat deleted", "id", chatID, "user_id", userID)
	return chat, nil
}

// ValidateChat confirms the chat exists and belongs to userID.
func (s *chatService) ValidateChat(ctx context.Context, chatID, userID string) error {
	_, err := s.chatRepo.GetChat(ctx, chatID, userID)
	return err
}

func (s *chatService) validateCreateChatRequest(req *services.CreateChatRequest) error {
	return validation.Errors{
		"user_id": validation.Validate(req.UserID, validation.Required),
		"title":   validation.Validate(req.Title, validation.Length(0, config.MaxChatTitleLength)),
	}.Filter()
}
