// Interactive terminal client for exercising the LLM providers without the
// HTTP server: type a prompt, watch the stream, switch models with /model.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"corai/internal/config"
	"corai/internal/domain/services"
	"corai/internal/llm"
	llmAnthropic "corai/internal/llm/anthropic"
	llmLorem "corai/internal/llm/lorem"
	llmOpenAI "corai/internal/llm/openai"
)

// ANSI color codes
const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
)

type cli struct {
	ctx      context.Context
	registry *llm.Registry
	scanner  *bufio.Scanner
	model    string
	history  []services.Message
	logger   *slog.Logger
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	registry := llm.NewRegistry(cfg.DefaultModel)
	if cfg.OpenAIAPIKey != "" {
		provider, err := llmOpenAI.NewProvider(cfg.OpenAIAPIKey)
		if err != nil {
			fmt.Printf("%s❌ Failed to create OpenAI provider: %v%s\n", colorRed, err, colorReset)
			os.Exit(1)
		}
		registry.Register(provider)
	}
	if cfg.AnthropicAPIKey != "" {
		provider, err := llmAnthropic.NewProvider(cfg.AnthropicAPIKey)
		if err != nil {
			fmt.Printf("%s❌ Failed to create Anthropic provider: %v%s\n", colorRed, err, colorReset)
			os.Exit(1)
		}
		registry.Register(provider)
	}
	registry.Register(llmLorem.NewProvider())

	c := &cli{
		ctx:      context.Background(),
		registry: registry,
		scanner:  bufio.NewScanner(os.Stdin),
		model:    cfg.DefaultModel,
		logger:   logger,
	}
	c.run()
}

func (c *cli) run() {
	fmt.Printf("\n%s╔══════════════════════════════════════╗%s\n", colorCyan, colorReset)
	fmt.Printf("%s║          CoraI LLM Test CLI          ║%s\n", colorCyan, colorReset)
	fmt.Printf("%s╚══════════════════════════════════════╝%s\n", colorCyan, colorReset)
	fmt.Printf("Model: %s%s%s\n", colorGreen, c.model, colorReset)
	fmt.Println("Commands: /model <name>, /reset, /quit")

	for {
		fmt.Printf("\n%s>%s ", colorBlue, colorReset)
		if !c.scanner.Scan() {
			return
		}
		line := strings.TrimSpace(c.scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return
		case line == "/reset":
			c.history = nil
			fmt.Println("history cleared")
		case strings.HasPrefix(line, "/model "):
			c.model = strings.TrimSpace(strings.TrimPrefix(line, "/model "))
			fmt.Printf("model set to %s%s%s\n", colorGreen, c.model, colorReset)
		default:
			c.ask(line)
		}
	}
}

func (c *cli) ask(prompt string) {
	_, provider, err := c.registry.Resolve(c.model)
	if err != nil {
		fmt.Printf("%s❌ %v%s\n", colorRed, err, colorReset)
		return
	}

	c.history = append(c.history, services.Message{Role: "user", Content: prompt})

	events, err := provider.StreamResponse(c.ctx, &services.GenerateRequest{
		Model:    c.model,
		Messages: c.history,
	})
	if err != nil {
		fmt.Printf("%s❌ %v%s\n", colorRed, err, colorReset)
		return
	}

	var reply strings.Builder
	for event := range events {
		switch {
		case event.Error != nil:
			fmt.Printf("\n%s❌ stream error: %v%s\n", colorRed, event.Error, colorReset)
			return
		case event.Metadata != nil:
			fmt.Printf("\n%s[%s | in=%d out=%d | %s]%s\n",
				colorCyan,
				event.Metadata.Model,
				event.Metadata.InputTokens,
				event.Metadata.OutputTokens,
				event.Metadata.StopReason,
				colorReset,
			)
		case event.Text != "":
			fmt.Print(event.Text)
			reply.WriteString(event.Text)
		}
	}

	c.history = append(c.history, services.Message{Role: "assistant", Content: reply.String()})
}
