// Package streaming drives assistant generations: it persists the typing
// placeholder, relays provider fragments to subscribers as they arrive, and
// throttles intermediate database writes to one per flush interval so token
// traffic never turns into row-update traffic.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"corai/internal/config"
	"corai/internal/domain"
	"corai/internal/domain/models"
	"corai/internal/domain/repositories"
	"corai/internal/domain/services"
	"corai/internal/llm"
	"corai/internal/state"
)

// User-facing replacement content persisted when a generation fails.
const (
	credentialErrorContent = "Error: Invalid API key. Please check your API key configuration."
	rateLimitErrorContent  = "Error: Rate limit exceeded. Please try again in a moment."
	quotaErrorContent      = "Error: API quota exceeded. Please check your account billing."
	genericErrorContent    = "Error: Failed to generate response. Please try again."
)

// streamingService implements the StreamingService interface
type streamingService struct {
	messageRepo   repositories.MessageRepository
	branchRepo    repositories.BranchRepository
	chatRepo      repositories.ChatRepository
	registry      *llm.Registry
	overlay       *state.MessageStore
	flushInterval time.Duration
	logger        *slog.Logger

	mu          sync.Mutex
	generations map[string]*generation
}

// NewStreamingService creates a new streaming service. overlay is the shared
// live-message store also read by the message service.
func NewStreamingService(
	messageRepo repositories.MessageRepository,
	branchRepo repositories.BranchRepository,
	chatRepo repositories.ChatRepository,
	registry *llm.Registry,
	overlay *state.MessageStore,
	logger *slog.Logger,
) services.StreamingService {
	return &streamingService{
		messageRepo:   messageRepo,
		branchRepo:    branchRepo,
		chatRepo:      chatRepo,
		registry:      registry,
		overlay:       overlay,
		flushInterval: config.StreamFlushInterval,
		logger:        logger,
		generations:   make(map[string]*generation),
	}
}

// StartGeneration persists the typing placeholder synchronously, then hands
// the stream to a detached goroutine. The placeholder existing before this
// returns means a page refresh mid-stream still shows the reply slot.
func (s *streamingService) StartGeneration(ctx context.Context, req *services.GenerationRequest) (*services.GenerationInfo, error) {
	model, provider, err := s.registry.Resolve(req.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	branch, err := s.branchRepo.GetBranch(ctx, req.BranchID)
	if err != nil {
		return nil, err
	}
	if _, err := s.chatRepo.GetChat(ctx, branch.ChatID, req.UserID); err != nil {
		return nil, err
	}

	placeholder := &models.Message{
		BranchID:  req.BranchID,
		Content:   "",
		Role:      models.RoleAssistant,
		ModelUsed: &model,
		IsTyping:  true,
		CreatedAt: time.Now(),
	}
	if err := s.messageRepo.CreateMessage(ctx, placeholder); err != nil {
		return nil, err
	}
	s.overlay.Put(*placeholder)

	// The generation outlives the HTTP request that started it. Only an
	// explicit interrupt cancels it.
	genCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))

	gen := newGeneration(uuid.NewString(), placeholder.ID, req.BranchID, branch.ChatID, req.UserID, model, cancel)
	s.mu.Lock()
	s.generations[placeholder.ID] = gen
	s.mu.Unlock()

	temperature := req.Temperature
	if temperature == nil {
		t := config.DefaultTemperature
		temperature = &t
	}
	maxTokens := req.MaxTokens
	if maxTokens == nil {
		m := config.DefaultMaxTokens
		maxTokens = &m
	}

	genReq := &services.GenerateRequest{
		Model:       model,
		Messages:    req.Prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	go s.run(genCtx, gen, provider, genReq)

	s.logger.Info("generation started",
		"generation_id", gen.id,
		"message_id", placeholder.ID,
		"branch_id", req.BranchID,
		"model", model,
	)

	return &services.GenerationInfo{
		GenerationID: gen.id,
		MessageID:    placeholder.ID,
		BranchID:     req.BranchID,
		Model:        model,
	}, nil
}

// run consumes the provider stream and settles the generation.
func (s *streamingService) run(ctx context.Context, gen *generation, provider services.LLMProvider, req *services.GenerateRequest) {
	defer s.unregister(gen.messageID)

	events, err := provider.StreamResponse(ctx, req)
	if err != nil {
		s.settleError(ctx, gen, err)
		return
	}

	for event := range events {
		switch {
		case event.Error != nil:
			s.settleError(ctx, gen, event.Error)
			return

		case event.Metadata != nil:
			s.settleDone(gen, event.Metadata)
			return

		case event.Text != "":
			gen.append(event.Text, s.flushInterval, func() { s.flush(gen) })
			s.overlay.Put(models.Message{
				ID:        gen.messageID,
				BranchID:  gen.branchID,
				Content:   gen.Content(),
				Role:      models.RoleAssistant,
				ModelUsed: &gen.model,
				IsTyping:  true,
			})
		}
	}

	// Channel closed without metadata or error: treat as complete.
	s.settleDone(gen, nil)
}

// flush persists the content accumulated so far. Runs on the timer
// goroutine; the row stays marked typing.
func (s *streamingService) flush(gen *generation) {
	content := gen.snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.messageRepo.UpdateMessage(ctx, gen.messageID, &models.MessageUpdate{Content: &content}); err != nil {
		s.logger.Warn("intermediate flush failed",
			"generation_id", gen.id,
			"message_id", gen.messageID,
			"error", err,
		)
	}
}

// settleDone finalizes a completed generation: one last write with the full
// content and the typing flag cleared, then the done broadcast.
func (s *streamingService) settleDone(gen *generation, metadata *services.StreamMetadata) {
	content := gen.Content()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	typing := false
	if _, err := s.messageRepo.UpdateMessage(ctx, gen.messageID, &models.MessageUpdate{
		Content:  &content,
		IsTyping: &typing,
	}); err != nil {
		s.logger.Error("failed to finalize generation",
			"generation_id", gen.id,
			"message_id", gen.messageID,
			"error", err,
		)
	}

	gen.finish(services.StreamUpdate{Type: services.StreamDone, Content: content})
	s.overlay.Drop(gen.branchID, gen.messageID)

	logAttrs := []any{
		"generation_id", gen.id,
		"message_id", gen.messageID,
		"chars", len(content),
	}
	if metadata != nil {
		logAttrs = append(logAttrs,
			"input_tokens", metadata.InputTokens,
			"output_tokens", metadata.OutputTokens,
			"stop_reason", metadata.StopReason,
		)
	}
	s.logger.Info("generation completed", logAttrs...)
}

// settleError decides between the interrupt path (placeholder deleted) and
// the failure path (placeholder finalized with replacement content).
func (s *streamingService) settleError(ctx context.Context, gen *generation, err error) {
	if errors.Is(context.Cause(ctx), domain.ErrInterrupted) {
		s.settleCancelled(gen)
		return
	}

	content := errorContent(err)

	dbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	typing := false
	if _, uerr := s.messageRepo.UpdateMessage(dbCtx, gen.messageID, &models.MessageUpdate{
		Content:  &content,
		IsTyping: &typing,
	}); uerr != nil {
		s.logger.Error("failed to persist generation error",
			"generation_id", gen.id,
			"message_id", gen.messageID,
			"error", uerr,
		)
	}

	gen.finish(services.StreamUpdate{Type: services.StreamError, Content: content, Error: err.Error()})
	s.overlay.Drop(gen.branchID, gen.messageID)

	s.logger.Error("generation failed",
		"generation_id", gen.id,
		"message_id", gen.messageID,
		"model", gen.model,
		"error", err,
	)
}

// settleCancelled removes the placeholder entirely: an interrupted reply
// leaves no trace in the conversation.
func (s *streamingService) settleCancelled(gen *generation) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.messageRepo.SoftDeleteMessage(ctx, gen.messageID); err != nil {
		s.logger.Error("failed to delete interrupted placeholder",
			"generation_id", gen.id,
			"message_id", gen.messageID,
			"error", err,
		)
	}

	gen.finish(services.StreamUpdate{Type: services.StreamCancelled})
	s.overlay.Drop(gen.branchID, gen.messageID)

	s.logger.Info("generation interrupted",
		"generation_id", gen.id,
		"message_id", gen.messageID,
	)
}

// Interrupt cancels the in-flight generation for a placeholder message.
func (s *streamingService) Interrupt(ctx context.Context, messageID, userID string) error {
	s.mu.Lock()
	gen, ok := s.generations[messageID]
	s.mu.Unlock()
	if !ok {
		return &domain.NotFoundError{Message: "no active generation for message " + messageID}
	}

	if _, err := s.chatRepo.GetChat(ctx, gen.chatID, userID); err != nil {
		return err
	}

	gen.cancel(domain.ErrInterrupted)
	return nil
}

// Subscribe attaches to a live generation.
func (s *streamingService) Subscribe(messageID string) (<-chan services.StreamUpdate, func(), bool) {
	s.mu.Lock()
	gen, ok := s.generations[messageID]
	s.mu.Unlock()
	if !ok {
		return nil, nil, false
	}
	return gen.subscribe()
}

func (s *streamingService) unregister(messageID string) {
	s.mu.Lock()
	delete(s.generations, messageID)
	s.mu.Unlock()
}

// errorContent maps a provider failure onto the user-facing content that
// replaces the placeholder.
func errorContent(err error) string {
	switch {
	case errors.Is(err, domain.ErrLLMCredential):
		return credentialErrorContent
	case errors.Is(err, domain.ErrLLMQuota):
		return quotaErrorContent
	case errors.Is(err, domain.ErrLLMRateLimited):
		return rateLimitErrorContent
	default:
		return genericErrorContent
	}
}
