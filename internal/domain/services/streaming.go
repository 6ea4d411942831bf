package services

import (
	"context"
)

// GenerationRequest starts one assistant generation on a branch. Prompt is
// the conversation context sent to the provider (typically the seed
// question, optionally preceded by history).
type GenerationRequest struct {
	ChatID      string
	BranchID    string
	UserID      string
	Prompt      []Message
	Model       string
	Temperature *float64
	MaxTokens   *int
}

// GenerationInfo identifies a started generation and its placeholder
// message.
type GenerationInfo struct {
	GenerationID string `json:"generation_id"`
	MessageID    string `json:"message_id"`
	BranchID     string `json:"branch_id"`
	Model        string `json:"model"`
}

// Stream update types broadcast to subscribers.
const (
	StreamDelta     = "delta"
	StreamDone      = "done"
	StreamError     = "error"
	StreamCancelled = "cancelled"
)

// StreamUpdate is one event on a generation's subscriber channel. Content
// holds the fragment for deltas and the full text for done events.
type StreamUpdate struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StreamingService drives assistant generations: placeholder persistence,
// fragment accumulation, throttled intermediate writes, finalization, and
// cancellation.
type StreamingService interface {
	// StartGeneration persists the typing placeholder synchronously, then
	// streams the completion on its own goroutine. The returned info names
	// the placeholder message to subscribe to.
	StartGeneration(ctx context.Context, req *GenerationRequest) (*GenerationInfo, error)

	// Interrupt cancels the in-flight generation for a placeholder message.
	// The placeholder is deleted, not finalized.
	Interrupt(ctx context.Context, messageID, userID string) error

	// Subscribe attaches to a live generation. The first update replays the
	// accumulated content; the release function must be called when done.
	// ok is false when no generation is active for the message.
	Subscribe(messageID string) (updates <-chan StreamUpdate, release func(), ok bool)
}
