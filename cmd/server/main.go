package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"corai/internal/auth"
	"corai/internal/config"
	"corai/internal/handler"
	"corai/internal/handler/sse"
	"corai/internal/llm"
	llmAnthropic "corai/internal/llm/anthropic"
	llmLorem "corai/internal/llm/lorem"
	llmOpenAI "corai/internal/llm/openai"
	"corai/internal/middleware"
	"corai/internal/repository/postgres"
	serviceBranch "corai/internal/service/branch"
	serviceChat "corai/internal/service/chat"
	serviceMessage "corai/internal/service/message"
	serviceStreaming "corai/internal/service/streaming"
	"corai/internal/state"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// JWT verifier for Supabase authentication
	jwtVerifier, err := auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	// pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	chatRepo := postgres.NewChatRepository(repoConfig)
	branchRepo := postgres.NewBranchRepository(repoConfig)
	messageRepo := postgres.NewMessageRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// LLM providers
	registry := llm.NewRegistry(cfg.DefaultModel)
	if cfg.OpenAIAPIKey != "" {
		provider, err := llmOpenAI.NewProvider(cfg.OpenAIAPIKey)
		if err != nil {
			log.Fatalf("Failed to create OpenAI provider: %v", err)
		}
		registry.Register(provider)
		logger.Info("llm provider registered", "provider", provider.Name())
	}
	if cfg.AnthropicAPIKey != "" {
		provider, err := llmAnthropic.NewProvider(cfg.AnthropicAPIKey)
		if err != nil {
			log.Fatalf("Failed to create Anthropic provider: %v", err)
		}
		registry.Register(provider)
		logger.Info("llm provider registered", "provider", provider.Name())
	}
	registry.Register(llmLorem.NewProvider())

	catalog, err := llm.NewCatalog()
	if err != nil {
		log.Fatalf("Failed to load model catalog: %v", err)
	}

	// Services. The overlay store is shared between the message and
	// streaming services so live generations show up in message reads.
	overlay := state.NewMessageStore()
	streamingService := serviceStreaming.NewStreamingService(messageRepo, branchRepo, chatRepo, registry, overlay, logger)
	messageService := serviceMessage.NewMessageService(messageRepo, branchRepo, chatRepo, overlay, logger)
	chatService := serviceChat.NewChatService(chatRepo, branchRepo, messageRepo, txManager, messageService, logger)
	branchService := serviceBranch.NewBranchService(branchRepo, messageRepo, chatRepo, txManager, messageService, streamingService, logger)

	// Handlers
	chatHandler := handler.NewChatHandler(chatService, logger)
	branchHandler := handler.NewBranchHandler(branchService, logger)
	messageHandler := handler.NewMessageHandler(messageService, streamingService, logger)
	streamHandler := handler.NewStreamHandler(streamingService, sse.DefaultConfig(), logger)
	modelsHandler := handler.NewModelsHandler(catalog, logger)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", handler.HealthCheck)

	// Chat routes
	mux.HandleFunc("GET /api/chats", chatHandler.ListChats)
	mux.HandleFunc("POST /api/chats", chatHandler.CreateChat)
	mux.HandleFunc("GET /api/chats/{id}", chatHandler.GetChat)
	mux.HandleFunc("PATCH /api/chats/{id}", chatHandler.UpdateChat)
	mux.HandleFunc("DELETE /api/chats/{id}", chatHandler.DeleteChat)

	// Branch routes
	mux.HandleFunc("GET /api/chats/{id}/branches", branchHandler.ListBranches)
	mux.HandleFunc("POST /api/chats/{id}/branches", branchHandler.CreateBranch)
	mux.HandleFunc("POST /api/chats/{id}/branches/fanout", branchHandler.Fanout)
	mux.HandleFunc("PATCH /api/branches/{id}", branchHandler.UpdateBranch)
	mux.HandleFunc("DELETE /api/branches/{id}", branchHandler.DeleteBranch)

	// Message routes
	mux.HandleFunc("GET /api/branches/{id}/messages", messageHandler.ListMessages)
	mux.HandleFunc("POST /api/branches/{id}/messages", messageHandler.AddMessage)
	mux.HandleFunc("POST /api/branches/{id}/generate", messageHandler.Generate)
	mux.HandleFunc("PATCH /api/messages/{id}", messageHandler.UpdateMessage)
	mux.HandleFunc("DELETE /api/messages/{id}", messageHandler.DeleteMessage)

	// Streaming routes
	mux.HandleFunc("GET /api/messages/{id}/stream", streamHandler.Stream)
	mux.HandleFunc("POST /api/messages/{id}/interrupt", messageHandler.Interrupt)

	// Model catalog
	mux.HandleFunc("GET /api/models", modelsHandler.ListModels)

	// Middleware chain. Order: CORS → Recovery → Auth → Routes.
	var h http.Handler = mux
	h = middleware.AuthMiddleware(jwtVerifier)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
