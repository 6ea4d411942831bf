// Package lorem is a mock LLM provider that generates lorem ipsum text.
// Used for testing and development without requiring real API keys.
package lorem

import (
	"context"
	"fmt"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"

	"corai/internal/domain/services"
)

// Provider generates lorem ipsum completions.
type Provider struct {
	generator *loremgen.Lorem
}

// NewProvider creates a new lorem ipsum provider.
func NewProvider() *Provider {
	return &Provider{
		generator: loremgen.New(),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "lorem"
}

// SupportsModel returns true if the model name starts with "lorem-".
// Example models: "lorem-fast", "lorem-slow"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

// getStreamDelay returns the delay between words based on the model name.
// - lorem-slow: 2 words/second
// - lorem-fast: 30 words/second
// - default: 10 words/second
func getStreamDelay(model string) time.Duration {
	if strings.Contains(model, "slow") {
		return 500 * time.Millisecond
	}
	if strings.Contains(model, "fast") {
		return 33 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// GenerateResponse generates a complete lorem ipsum response after a short
// delay that simulates a blocking API call.
func (p *Provider) GenerateResponse(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResponse, error) {
	if !p.SupportsModel(req.Model) {
		return nil, fmt.Errorf("model '%s' is not supported by lorem provider", req.Model)
	}

	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	text := p.generator.Paragraph(2, 4)

	return &services.GenerateResponse{
		Content:      text,
		Model:        req.Model,
		InputTokens:  p.estimateTokens(req.Messages),
		OutputTokens: len(strings.Fields(text)),
		StopReason:   "end_turn",
	}, nil
}

// StreamResponse streams lorem ipsum word by word. Speed varies with the
// model name (lorem-slow, lorem-fast).
func (p *Provider) StreamResponse(ctx context.Context, req *services.GenerateRequest) (<-chan services.StreamEvent, error) {
	if !p.SupportsModel(req.Model) {
		return nil, fmt.Errorf("model '%s' is not supported by lorem provider", req.Model)
	}

	delay := getStreamDelay(req.Model)
	eventChan := make(chan services.StreamEvent, 10)

	go func() {
		defer close(eventChan)

		text := p.generator.Paragraph(1, 3)
		words := strings.Fields(text)

		for i, word := range words {
			delta := word
			if i < len(words)-1 {
				delta += " "
			}

			select {
			case <-ctx.Done():
				eventChan <- services.StreamEvent{Error: ctx.Err()}
				return
			case eventChan <- services.StreamEvent{Text: delta}:
			}

			select {
			case <-ctx.Done():
				eventChan <- services.StreamEvent{Error: ctx.Err()}
				return
			case <-time.After(delay):
			}
		}

		eventChan <- services.StreamEvent{
			Metadata: &services.StreamMetadata{
				Model:        req.Model,
				InputTokens:  p.estimateTokens(req.Messages),
				OutputTokens: len(words),
				StopReason:   "end_turn",
			},
		}
	}()

	return eventChan, nil
}

// estimateTokens approximates input token count by word count.
func (p *Provider) estimateTokens(messages []services.Message) int {
	total := 0
	for _, m := range messages {
		total += len(strings.Fields(m.Content))
	}
	return total
}
