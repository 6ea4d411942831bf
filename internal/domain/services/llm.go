package services

import (
	"context"
)

// Message is one turn of conversation context sent to a provider.
type Message struct {
	Role    string
	Content string
}

// GenerateRequest is a provider-agnostic completion request.
type GenerateRequest struct {
	Model       string
	Messages    []Message
	System      *string
	Temperature *float64
	MaxTokens   *int
}

// GenerateResponse is a complete (non-streaming) completion.
type GenerateResponse struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// StreamMetadata carries the final usage metadata of a streamed completion.
type StreamMetadata struct {
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// StreamEvent is one element of a provider stream: a text fragment, the
// terminal metadata, or an error. Zero-valued events are ignored by
// consumers.
type StreamEvent struct {
	Text     string
	Metadata *StreamMetadata
	Error    error
}

// LLMProvider generates chat completions for the models it supports.
// StreamResponse returns a channel that is closed after the final event;
// implementations must respect ctx cancellation.
type LLMProvider interface {
	Name() string
	SupportsModel(model string) bool
	GenerateResponse(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	StreamResponse(ctx context.Context, req *GenerateRequest) (<-chan StreamEvent, error)
}
