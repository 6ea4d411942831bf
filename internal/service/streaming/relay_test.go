package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"corai/internal/domain"
	"corai/internal/domain/models"
	"corai/internal/domain/services"
	"corai/internal/llm"
	"corai/internal/state"
)

// fakeChatRepo owns a single chat for a single user.
type fakeChatRepo struct{}

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
	return nil
}
func (r *fakeChatRepo) DeleteChat(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	return nil, nil
}

type fakeBranchRepo struct{}

func (r *fakeBranchRepo) CreateBranch(ctx context.Context, branch *models.Branch) error { return nil }
func (r *fakeBranchRepo) GetBranch(ctx context.Context, branchID string) (*models.Branch, error) {
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

// fakeMessageRepo records every write so tests can count flushes.
type fakeMessageRepo struct {
	mu       sync.Mutex
	nextID   int
	messages map[string]*models.Message
	updates  []models.MessageUpdate
	deleted  []string
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
	return nil, nil
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
	r.updates = append(r.updates, *update)
	out := *msg
	return &out, nil
}

func (r *fakeMessageRepo) SoftDeleteMessage(ctx context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := r.messages[messageID]; ok {
		msg.IsDeleted = true
	}
	r.deleted = append(r.deleted, messageID)
	return nil
}

func (r *fakeMessageRepo) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *fakeMessageRepo) get(messageID string) models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.messages[messageID]
}

// scriptedProvider plays back a fixed sequence of stream events.
type scriptedProvider struct {
	events []services.StreamEvent
	delay  time.Duration
	block  bool
}

func (p *scriptedProvider) Name() string                { return "scripted" }
func (p *scriptedProvider) SupportsModel(m string) bool { return true }

func (p *scriptedProvider) GenerateResponse(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func (p *scriptedProvider) StreamResponse(ctx context.Context, req *services.GenerateRequest) (<-chan services.StreamEvent, error) {
	ch := make(chan services.StreamEvent, 10)
	go func() {
		defer close(ch)
		if p.block {
			<-ctx.Done()
			ch <- services.StreamEvent{Error: ctx.Err()}
			return
		}
		for _, ev := range p.events {
			select {
			case <-ctx.Done():
				ch <- services.StreamEvent{Error: ctx.Err()}
				return
			case ch <- ev:
			}
			if p.delay > 0 {
				time.Sleep(p.delay)
			}
		}
	}()
	return ch, nil
}

func newTestService(provider services.LLMProvider, repo *fakeMessageRepo, flushInterval time.Duration) *streamingService {
	registry := llm.NewRegistry("test-model")
	registry.Register(provider)

	return &streamingService{
		messageRepo:   repo,
		branchRepo:    &fakeBranchRepo{},
		chatRepo:      &fakeChatRepo{},
		registry:      registry,
		overlay:       state.NewMessageStore(),
		flushInterval: flushInterval,
		logger:        slog.New(slog.DiscardHandler),
		generations:   make(map[string]*generation),
	}
}

func startTestGeneration(t *testing.T, svc *streamingService) *services.GenerationInfo {
	t.Helper()
	info, err := svc.StartGeneration(context.Background(), &services.GenerationRequest{
		ChatID:   "chat-1",
		BranchID: "branch-1",
		UserID:   "user-1",
		Prompt:   []services.Message{{Role: "user", Content: "hi"}},
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("StartGeneration() error = %v", err)
	}
	return info
}

func drain(t *testing.T, updates <-chan services.StreamUpdate) []services.StreamUpdate {
	t.Helper()
	var got []services.StreamUpdate
	timeout := time.After(5 * time.Second)
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return got
			}
			got = append(got, update)
		case <-timeout:
			t.Fatal("timed out waiting for stream updates")
		}
	}
}

func TestGenerationStreamsToCompletion(t *testing.T) {
	provider := &scriptedProvider{events: []services.StreamEvent{
		{Text: "Hello,"},
		{Text: " world"},
		{Metadata: &services.StreamMetadata{Model: "test-model", OutputTokens: 2, StopReason: "stop"}},
	}}
	repo := newFakeMessageRepo()
	svc := newTestService(provider, repo, time.Hour)

	info := startTestGeneration(t, svc)

	updates, release, ok := svc.Subscribe(info.MessageID)
	if !ok {
		t.Fatal("Subscribe() returned ok = false for live generation")
	}
	defer release()

	got := drain(t, updates)
	last := got[len(got)-1]
	if last.Type != services.StreamDone {
		t.Fatalf("last update type = %q, want done", last.Type)
	}
	if last.Content != "Hello, world" {
		t.Errorf("done content = %q, want %q", last.Content, "Hello, world")
	}

	msg := repo.get(info.MessageID)
	if msg.Content != "Hello, world" || msg.IsTyping {
		t.Errorf("persisted message = %+v, want finalized content", msg)
	}
	if got := svc.overlay.Branch("branch-1"); len(got) != 0 {
		t.Errorf("overlay after completion = %v, want empty", got)
	}
}

func TestIntermediateWritesAreThrottled(t *testing.T) {
	// Twenty fragments but a one-hour flush interval: the timer never
	// fires, so the only write after the placeholder is the finalization.
	events := make([]services.StreamEvent, 0, 21)
	for i := 0; i < 20; i++ {
		events = append(events, services.StreamEvent{Text: "x"})
	}
	events = append(events, services.StreamEvent{Metadata: &services.StreamMetadata{StopReason: "stop"}})

	repo := newFakeMessageRepo()
	svc := newTestService(&scriptedProvider{events: events}, repo, time.Hour)

	info := startTestGeneration(t, svc)
	updates, release, ok := svc.Subscribe(info.MessageID)
	if !ok {
		t.Fatal("Subscribe() returned ok = false")
	}
	defer release()
	drain(t, updates)

	if got := repo.updateCount(); got != 1 {
		t.Errorf("UpdateMessage called %d times, want 1 (finalization only)", got)
	}
}

func TestIntermediateFlushFires(t *testing.T) {
	events := make([]services.StreamEvent, 0, 11)
	for i := 0; i < 10; i++ {
		events = append(events, services.StreamEvent{Text: "word "})
	}
	events = append(events, services.StreamEvent{Metadata: &services.StreamMetadata{StopReason: "stop"}})

	repo := newFakeMessageRepo()
	svc := newTestService(&scriptedProvider{events: events, delay: 10 * time.Millisecond}, repo, 25*time.Millisecond)

	info := startTestGeneration(t, svc)
	updates, release, ok := svc.Subscribe(info.MessageID)
	if !ok {
		t.Fatal("Subscribe() returned ok = false")
	}
	defer release()
	drain(t, updates)

	// ~100ms of streaming with a 25ms interval: several flushes, but far
	// fewer than one per fragment.
	got := repo.updateCount()
	if got < 2 {
		t.Errorf("UpdateMessage called %d times, want at least one intermediate flush", got)
	}
	if got > 8 {
		t.Errorf("UpdateMessage called %d times for 10 fragments, throttling ineffective", got)
	}
}

func TestInterruptDeletesPlaceholder(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := newTestService(&scriptedProvider{block: true}, repo, time.Hour)

	info := startTestGeneration(t, svc)
	updates, release, ok := svc.Subscribe(info.MessageID)
	if !ok {
		t.Fatal("Subscribe() returned ok = false")
	}
	defer release()

	if err := svc.Interrupt(context.Background(), info.MessageID, "user-1"); err != nil {
		t.Fatalf("Interrupt() error = %v", err)
	}

	got := drain(t, updates)
	if len(got) == 0 || got[len(got)-1].Type != services.StreamCancelled {
		t.Fatalf("updates = %+v, want terminal cancelled event", got)
	}

	msg := repo.get(info.MessageID)
	if !msg.IsDeleted {
		t.Errorf("placeholder = %+v, want soft-deleted after interrupt", msg)
	}
	if _, _, ok := svc.Subscribe(info.MessageID); ok {
		t.Error("Subscribe() after interrupt returned ok = true")
	}
}

func TestInterruptUnknownGeneration(t *testing.T) {
	svc := newTestService(&scriptedProvider{}, newFakeMessageRepo(), time.Hour)

	err := svc.Interrupt(context.Background(), "msg-none", "user-1")
	var nfErr *domain.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Errorf("Interrupt() error = %v, want NotFoundError", err)
	}
}

func TestProviderFailureReplacesContent(t *testing.T) {
	provider := &scriptedProvider{events: []services.StreamEvent{
		{Text: "partial"},
		{Error: fmt.Errorf("%w: 401", domain.ErrLLMCredential)},
	}}
	repo := newFakeMessageRepo()
	svc := newTestService(provider, repo, time.Hour)

	info := startTestGeneration(t, svc)
	updates, release, ok := svc.Subscribe(info.MessageID)
	if !ok {
		t.Fatal("Subscribe() returned ok = false")
	}
	defer release()

	got := drain(t, updates)
	last := got[len(got)-1]
	if last.Type != services.StreamError {
		t.Fatalf("last update type = %q, want error", last.Type)
	}

	msg := repo.get(info.MessageID)
	if msg.Content != credentialErrorContent {
		t.Errorf("persisted content = %q, want credential error text", msg.Content)
	}
	if msg.IsTyping {
		t.Error("message still marked typing after failure")
	}
}

func TestSubscribeReplaysAccumulatedContent(t *testing.T) {
	provider := &scriptedProvider{events: []services.StreamEvent{
		{Text: "already streamed"},
	}, block: false}
	// Keep the stream open after the first fragment so the subscriber
	// attaches mid-flight.
	provider.events = append(provider.events, services.StreamEvent{Text: ""})
	provider.delay = 50 * time.Millisecond

	repo := newFakeMessageRepo()
	svc := newTestService(provider, repo, time.Hour)
	info := startTestGeneration(t, svc)

	// Wait for the first fragment to land.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if len(svc.overlay.Branch("branch-1")) > 0 && svc.overlay.Branch("branch-1")[0].Content != "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for first fragment")
		}
		time.Sleep(5 * time.Millisecond)
	}

	updates, release, ok := svc.Subscribe(info.MessageID)
	if !ok {
		t.Fatal("Subscribe() returned ok = false")
	}
	defer release()

	select {
	case first := <-updates:
		if first.Type != services.StreamDelta || first.Content != "already streamed" {
			t.Errorf("first update = %+v, want catch-up delta with accumulated content", first)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for catch-up delta")
	}
}

