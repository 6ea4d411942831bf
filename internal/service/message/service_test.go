package message

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"corai/internal/domain"
	"corai/internal/domain/models"
	"corai/internal/domain/services"
	"corai/internal/state"
)

type fakeChatRepo struct {
	mu       sync.Mutex
	previews []string
}

func (r *fakeChatRepo) CreateChat(ctx context.Context, chat *models.Chat) error { return nil }
func (r *fakeChatRepo) GetChat(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	if chatID != "chat-1" || userID != "user-1" {
		return nil, &domain.NotFoundError{Message: "chat not found"}
	}
	return &models.Chat{ID: chatID, UserID: userID}, nil
}
func (r *fakeChatRepo) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	return nil, nil
}
func (r *fakeChatRepo) UpdateChat(ctx context.Context, chat *models.Chat) error { return nil }
func (r *fakeChatRepo) TouchPreview(ctx context.Context, chatID, userID, preview string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.previews = append(r.previews, preview)
	return nil
}
func (r *fakeChatRepo) DeleteChat(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	return nil, nil
}

func (r *fakeChatRepo) lastPreview() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.previews) == 0 {
		return "", false
	}
	return r.previews[len(r.previews)-1], true
}

type fakeBranchRepo struct{}

func (r *fakeBranchRepo) CreateBranch(ctx context.Context, branch *models.Branch) error { return nil }
func (r *fakeBranchRepo) GetBranch(ctx context.Context, branchID string) (*models.Branch, error) {
	if branchID != "branch-1" {
		return nil, &domain.NotFoundError{Message: "branch not found"}
	}
	return &models.Branch{ID: branchID, ChatID: "chat-1"}, nil
}
func (r *fakeBranchRepo) ListBranchesByChat(ctx context.Context, chatID string) ([]models.Branch, error) {
	return nil, nil
}
func (r *fakeBranchRepo) UpdateBranch(ctx context.Context, branchID string, update *models.BranchUpdate) (*models.Branch, error) {
	return nil, nil
}
func (r *fakeBranchRepo) TouchBranch(ctx context.Context, branchID string) error { return nil }
func (r *fakeBranchRepo) CountChildren(ctx context.Context, branchID string) (int, error) {
	return 0, nil
}
func (r *fakeBranchRepo) DeleteBranch(ctx context.Context, branchID string) error { return nil }

type fakeMessageRepo struct {
	mu       sync.Mutex
	nextID   int
	messages map[string]*models.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*models.Message)}
}

func (r *fakeMessageRepo) CreateMessage(ctx context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = "msg-" + strconv.Itoa(r.nextID)
	stored := *msg
	r.messages[msg.ID] = &stored
	return nil
}

func (r *fakeMessageRepo) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[messageID]
	if !ok || msg.IsDeleted {
		return nil, &domain.NotFoundError{Message: "message not found"}
	}
	out := *msg
	return &out, nil
}

func (r *fakeMessageRepo) ListMessagesByBranch(ctx context.Context, branchID string) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for _, m := range r.messages {
		if m.BranchID == branchID && !m.IsDeleted {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) UpdateMessage(ctx context.Context, messageID string, update *models.MessageUpdate) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[messageID]
	if !ok {
		return nil, &domain.NotFoundError{Message: "message not found"}
	}
	if update.Content != nil {
		msg.Content = *update.Content
	}
	if update.IsTyping != nil {
		msg.IsTyping = *update.IsTyping
	}
	out := *msg
	return &out, nil
}

func (r *fakeMessageRepo) SoftDeleteMessage(ctx context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := r.messages[messageID]; ok {
		msg.IsDeleted = true
	}
	return nil
}

func newTestService(repo *fakeMessageRepo, chatRepo *fakeChatRepo, overlay *state.MessageStore) services.MessageService {
	return NewMessageService(repo, &fakeBranchRepo{}, chatRepo, overlay, slog.New(slog.DiscardHandler))
}

func TestAddMessageUpdatesPreview(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantPreview string
	}{
		{
			name:        "short content kept whole",
			content:     "What is a monad?",
			wantPreview: "What is a monad?",
		},
		{
			name:        "long content truncated with ellipsis",
			content:     strings.Repeat("a", 80),
			wantPreview: strings.Repeat("a", 50) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chatRepo := &fakeChatRepo{}
			svc := newTestService(newFakeMessageRepo(), chatRepo, state.NewMessageStore())

			_, err := svc.AddMessage(context.Background(), &services.AddMessageRequest{
				BranchID: "branch-1",
				UserID:   "user-1",
				Content:  tt.content,
				Role:     string(models.RoleUser),
			})
			if err != nil {
				t.Fatalf("AddMessage() error = %v", err)
			}

			preview, ok := chatRepo.lastPreview()
			if !ok {
				t.Fatal("user message did not update the chat preview")
			}
			if preview != tt.wantPreview {
				t.Errorf("preview = %q, want %q", preview, tt.wantPreview)
			}
		})
	}
}

func TestAddAssistantMessageSkipsPreview(t *testing.T) {
	chatRepo := &fakeChatRepo{}
	svc := newTestService(newFakeMessageRepo(), chatRepo, state.NewMessageStore())

	_, err := svc.AddMessage(context.Background(), &services.AddMessageRequest{
		BranchID: "branch-1",
		UserID:   "user-1",
		Content:  "assistant reply",
		Role:     string(models.RoleAssistant),
	})
	if err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}

	if _, ok := chatRepo.lastPreview(); ok {
		t.Error("assistant message updated the chat preview")
	}
}

func TestAddMessageRejectsBadRole(t *testing.T) {
	svc := newTestService(newFakeMessageRepo(), &fakeChatRepo{}, state.NewMessageStore())

	_, err := svc.AddMessage(context.Background(), &services.AddMessageRequest{
		BranchID: "branch-1",
		UserID:   "user-1",
		Content:  "hello",
		Role:     "moderator",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("AddMessage() with bad role error = %v, want validation error", err)
	}
}

func TestListMessagesMergesOverlay(t *testing.T) {
	repo := newFakeMessageRepo()
	overlay := state.NewMessageStore()
	svc := newTestService(repo, &fakeChatRepo{}, overlay)

	// Persisted user message plus a live assistant reply only the overlay
	// knows about yet.
	user := &models.Message{BranchID: "branch-1", Content: "question", Role: models.RoleUser, CreatedAt: time.Now()}
	if err := repo.CreateMessage(context.Background(), user); err != nil {
		t.Fatal(err)
	}
	overlay.Put(models.Message{
		ID:        "msg-live",
		BranchID:  "branch-1",
		Content:   "streaming so f",
		Role:      models.RoleAssistant,
		IsTyping:  true,
		CreatedAt: time.Now().Add(time.Second),
	})

	got, err := svc.ListMessages(context.Background(), "branch-1", "user-1")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListMessages() returned %d messages, want 2", len(got))
	}
	if got[1].ID != "msg-live" || !got[1].IsTyping {
		t.Errorf("ListMessages()[1] = %+v, want live overlay message", got[1])
	}
}

func TestRemoveMessageDropsOverlay(t *testing.T) {
	repo := newFakeMessageRepo()
	overlay := state.NewMessageStore()
	svc := newTestService(repo, &fakeChatRepo{}, overlay)

	msg := &models.Message{BranchID: "branch-1", Content: "to remove", Role: models.RoleUser}
	if err := repo.CreateMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	overlay.Put(*msg)

	if err := svc.RemoveMessage(context.Background(), msg.ID, "user-1"); err != nil {
		t.Fatalf("RemoveMessage() error = %v", err)
	}

	if _, err := repo.GetMessage(context.Background(), msg.ID); err == nil {
		t.Error("message still readable after removal")
	}
	if len(overlay.Branch("branch-1")) != 0 {
		t.Error("overlay still holds removed message")
	}
}
