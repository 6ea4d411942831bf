package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"corai/internal/config"
	"corai/internal/domain/models"
	"corai/internal/domain/services"
	"corai/internal/repository/postgres"
	serviceChat "corai/internal/service/chat"
	serviceMessage "corai/internal/service/message"
	"corai/internal/state"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed a demo chat")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("🚫 BLOCKED: Cannot run --drop-tables in production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *schemaOnly {
		log.Printf("🏗️  Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else {
		log.Printf("🌱 Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	log.Println("📋 Ensuring database schema is up to date...")
	if err := runSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	// Demo chat seeding needs an owner. Skip quietly when none is set.
	seedUserID := os.Getenv("SEED_USER_ID")
	if seedUserID == "" {
		log.Println("ℹ️  SEED_USER_ID not set, skipping demo chat")
		return
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	chatRepo := postgres.NewChatRepository(repoConfig)
	branchRepo := postgres.NewBranchRepository(repoConfig)
	messageRepo := postgres.NewMessageRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	overlay := state.NewMessageStore()
	messageService := serviceMessage.NewMessageService(messageRepo, branchRepo, chatRepo, overlay, logger)
	chatService := serviceChat.NewChatService(chatRepo, branchRepo, messageRepo, txManager, messageService, logger)

	log.Println("📝 Seeding demo chat...")
	detail, err := chatService.CreateChat(ctx, &services.CreateChatRequest{
		UserID: seedUserID,
		Title:  "Welcome to CoraI",
	})
	if err != nil {
		log.Fatalf("Failed to create demo chat: %v", err)
	}

	if _, err := messageService.AddMessage(ctx, &services.AddMessageRequest{
		BranchID: detail.MainBranchID,
		UserID:   seedUserID,
		Content:  "What can I do with branching conversations?",
		Role:     string(models.RoleUser),
	}); err != nil {
		log.Fatalf("Failed to seed demo message: %v", err)
	}

	log.Printf("✅ Created demo chat %s (root branch %s)", detail.ID, detail.MainBranchID)
	log.Println("🎉 Seeding complete!")
}

// runSchema creates tables if they don't exist
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	// Enable UUID extension
	_, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"")
	if err != nil {
		return err
	}

	createChats := `
		CREATE TABLE IF NOT EXISTS ` + tables.Chats + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL,
			title TEXT NOT NULL,
			preview TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)
	`
	if _, err := pool.Exec(ctx, createChats); err != nil {
		return err
	}

	createBranches := `
		CREATE TABLE IF NOT EXISTS ` + tables.Branches + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			chat_id UUID NOT NULL REFERENCES ` + tables.Chats + `(id) ON DELETE CASCADE,
			parent_branch_id UUID REFERENCES ` + tables.Branches + `(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			color TEXT NOT NULL,
			purpose TEXT,
			tags TEXT[],
			priority TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createBranches); err != nil {
		return err
	}

	createMessages := `
		CREATE TABLE IF NOT EXISTS ` + tables.Messages + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			branch_id UUID NOT NULL REFERENCES ` + tables.Branches + `(id) ON DELETE CASCADE,
			parent_message_id UUID,
			content TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
			model_used TEXT,
			token_count INTEGER,
			is_typing BOOLEAN NOT NULL DEFAULT FALSE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createMessages); err != nil {
		return err
	}

	indexes := []string{
		// One root branch per chat.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + tablePrefix + `branches_single_root ON ` + tables.Branches + `(chat_id) WHERE parent_branch_id IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `chats_user_updated ON ` + tables.Chats + `(user_id, updated_at DESC) WHERE deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `branches_chat_id ON ` + tables.Branches + `(chat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `branches_parent ON ` + tables.Branches + `(parent_branch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `messages_branch_order ON ` + tables.Messages + `(branch_id, created_at, id)`,
	}

	for _, indexSQL := range indexes {
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return err
		}
	}

	return nil
}

// dropAllTables drops all tables in reverse order (to respect foreign keys)
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	tableNames := []string{
		tables.Messages,
		tables.Branches,
		tables.Chats,
	}

	for _, table := range tableNames {
		dropSQL := "DROP TABLE IF EXISTS " + table + " CASCADE"
		if _, err := pool.Exec(ctx, dropSQL); err != nil {
			return err
		}
		log.Printf("  ✓ Dropped %s", table)
	}

	return nil
}
