// Package anthropic implements the LLMProvider interface for Claude models.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"corai/internal/domain"
	"corai/internal/domain/models"
	"corai/internal/domain/services"
)

// Provider implements the LLMProvider interface for Anthropic (Claude) models.
type Provider struct {
	client *anthropic.Client
}

// NewProvider creates a new Anthropic provider with the given API key.
func NewProvider(apiKey string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &Provider{client: &client}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "anthropic"
}

// SupportsModel returns true if this provider supports the given model.
// Anthropic models start with "claude-"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

// GenerateResponse generates a complete response from Claude.
func (p *Provider) GenerateResponse(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResponse, error) {
	if !p.SupportsModel(req.Model) {
		return nil, fmt.Errorf("model '%s' is not supported by Anthropic provider", req.Model)
	}

	apiParams, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	message, err := p.client.Messages.New(ctx, apiParams)
	if err != nil {
		return nil, categorizeError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &services.GenerateResponse{
		Content:      text.String(),
		Model:        string(message.Model),
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
		StopReason:   string(message.StopReason),
	}, nil
}

// StreamResponse generates a streaming response from Claude.
// Returns a channel that emits StreamEvent as deltas arrive from the API.
func (p *Provider) StreamResponse(ctx context.Context, req *services.GenerateRequest) (<-chan services.StreamEvent, error) {
	if !p.SupportsModel(req.Model) {
		return nil, fmt.Errorf("model '%s' is not supported by Anthropic provider", req.Model)
	}

	apiParams, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	eventChan := make(chan services.StreamEvent, 10)

	go func() {
		defer close(eventChan)

		stream := p.client.Messages.NewStreaming(ctx, apiParams)

		// Accumulator for final message metadata
		message := anthropic.Message{}

		for stream.Next() {
			event := stream.Current()

			if err := message.Accumulate(event); err != nil {
				eventChan <- services.StreamEvent{
					Error: fmt.Errorf("failed to accumulate message: %w", err),
				}
				return
			}

			var text string
			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok {
					text = delta.Text
				}
			}
			if text == "" {
				continue
			}

			select {
			case <-ctx.Done():
				eventChan <- services.StreamEvent{Error: ctx.Err()}
				return
			case eventChan <- services.StreamEvent{Text: text}:
			}
		}

		if err := stream.Err(); err != nil {
			eventChan <- services.StreamEvent{Error: categorizeError(err)}
			return
		}

		eventChan <- services.StreamEvent{
			Metadata: &services.StreamMetadata{
				Model:        string(message.Model),
				InputTokens:  int(message.Usage.InputTokens),
				OutputTokens: int(message.Usage.OutputTokens),
				StopReason:   string(message.StopReason),
			},
		}
	}()

	return eventChan, nil
}

// buildParams converts a domain request into Anthropic API parameters.
// System messages inside the conversation are folded into the system
// prompt since the Messages API rejects role "system" entries.
func buildParams(req *services.GenerateRequest) (anthropic.MessageNewParams, error) {
	maxTokens := int64(4096)
	if req.MaxTokens != nil {
		maxTokens = int64(*req.MaxTokens)
	}

	var systemParts []string
	if req.System != nil && *req.System != "" {
		systemParts = append(systemParts, *req.System)
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case string(models.RoleAssistant):
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case string(models.RoleSystem):
			systemParts = append(systemParts, m.Content)
		case string(models.RoleUser):
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		default:
			return anthropic.MessageNewParams{}, fmt.Errorf("unsupported message role: %s", m.Role)
		}
	}

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if req.Temperature != nil {
		apiParams.Temperature = anthropic.Float(*req.Temperature)
	}
	if len(systemParts) > 0 {
		apiParams.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: strings.Join(systemParts, "\n\n"),
			},
		}
	}
	return apiParams, nil
}

// categorizeError maps Anthropic API failures onto the domain sentinels.
func categorizeError(err error) error {
	var sdkErr *anthropic.Error
	if !errors.As(err, &sdkErr) {
		return err
	}

	switch sdkErr.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", domain.ErrLLMCredential, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", domain.ErrLLMRateLimited, err)
	}
	return err
}
