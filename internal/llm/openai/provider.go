// Package openai implements the LLMProvider interface on the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"corai/internal/domain"
	"corai/internal/domain/models"
	"corai/internal/domain/services"
)

// Provider implements the LLMProvider interface for OpenAI models.
type Provider struct {
	client *openai.Client
}

// NewProvider creates an OpenAI provider with the given API key.
func NewProvider(apiKey string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	return &Provider{client: &client}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai"
}

// SupportsModel returns true if this provider supports the given model.
// OpenAI chat models start with "gpt-" or "o" series prefixes.
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "gpt-") ||
		strings.HasPrefix(model, "o1") ||
		strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "o4")
}

// GenerateResponse generates a complete response in one call.
func (p *Provider) GenerateResponse(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResponse, error) {
	if !p.SupportsModel(req.Model) {
		return nil, fmt.Errorf("model '%s' is not supported by OpenAI provider", req.Model)
	}

	params := buildParams(req)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, categorizeError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no content choices")
	}

	return &services.GenerateResponse{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		StopReason:   string(resp.Choices[0].FinishReason),
	}, nil
}

// StreamResponse streams a completion token by token. The returned channel
// closes after the terminal metadata or error event.
func (p *Provider) StreamResponse(ctx context.Context, req *services.GenerateRequest) (<-chan services.StreamEvent, error) {
	if !p.SupportsModel(req.Model) {
		return nil, fmt.Errorf("model '%s' is not supported by OpenAI provider", req.Model)
	}

	params := buildParams(req)

	eventChan := make(chan services.StreamEvent, 10)

	go func() {
		defer close(eventChan)

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		acc := openai.ChatCompletionAccumulator{}

		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			select {
			case <-ctx.Done():
				eventChan <- services.StreamEvent{Error: ctx.Err()}
				return
			case eventChan <- services.StreamEvent{Text: delta}:
			}
		}

		if err := stream.Err(); err != nil {
			eventChan <- services.StreamEvent{Error: categorizeError(err)}
			return
		}

		metadata := &services.StreamMetadata{
			Model:        req.Model,
			InputTokens:  int(acc.Usage.PromptTokens),
			OutputTokens: int(acc.Usage.CompletionTokens),
			StopReason:   "stop",
		}
		if acc.Model != "" {
			metadata.Model = acc.Model
		}
		if len(acc.Choices) > 0 && acc.Choices[0].FinishReason != "" {
			metadata.StopReason = string(acc.Choices[0].FinishReason)
		}

		eventChan <- services.StreamEvent{Metadata: metadata}
	}()

	return eventChan, nil
}

// buildParams converts a domain request into OpenAI API parameters.
func buildParams(req *services.GenerateRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != nil && *req.System != "" {
		messages = append(messages, openai.SystemMessage(*req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case string(models.RoleAssistant):
			messages = append(messages, openai.AssistantMessage(m.Content))
		case string(models.RoleSystem):
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}
	return params
}

// categorizeError maps OpenAI API failures onto the domain sentinels so
// callers can distinguish bad credentials from rate limiting from an
// exhausted quota.
func categorizeError(err error) error {
	var apierr *openai.Error
	if !errors.As(err, &apierr) {
		return err
	}

	switch apierr.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", domain.ErrLLMCredential, err)
	case http.StatusTooManyRequests:
		if strings.Contains(apierr.Code, "insufficient_quota") ||
			strings.Contains(apierr.Message, "quota") {
			return fmt.Errorf("%w: %v", domain.ErrLLMQuota, err)
		}
		return fmt.Errorf("%w: %v", domain.ErrLLMRateLimited, err)
	}
	return err
}
