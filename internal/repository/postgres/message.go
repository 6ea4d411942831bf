package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"corai/internal/domain"
	"corai/internal/domain/models"
	"corai/internal/domain/repositories"
)

// PostgresMessageRepository implements the MessageRepository interface using PostgreSQL
type PostgresMessageRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewMessageRepository creates a new PostgresMessageRepository
func NewMessageRepository(config *RepositoryConfig) repositories.MessageRepository {
	return &PostgresMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateMessage appends a message to a branch
func (r *PostgresMessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (branch_id, parent_message_id, content, role, model_used, token_count, is_typing, is_deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
		RETURNING id, created_at
	`, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		msg.BranchID,
		msg.ParentMessageID,
		msg.Content,
		msg.Role,
		msg.ModelUsed,
		msg.TokenCount,
		msg.IsTyping,
		msg.CreatedAt,
	).Scan(&msg.ID, &msg.CreatedAt)

	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("branch %s: %w", msg.BranchID, domain.ErrNotFound)
		}
		return fmt.Errorf("create message: %w", err)
	}

	return nil
}

// GetMessage retrieves a non-deleted message by ID
func (r *PostgresMessageRepository) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, branch_id, parent_message_id, content, role, model_used, token_count, is_typing, is_deleted, created_at
		FROM %s
		WHERE id = $1 AND is_deleted = false
	`, r.tables.Messages)

	var msg models.Message
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, messageID).Scan(
		&msg.ID,
		&msg.BranchID,
		&msg.ParentMessageID,
		&msg.Content,
		&msg.Role,
		&msg.ModelUsed,
		&msg.TokenCount,
		&msg.IsTyping,
		&msg.IsDeleted,
		&msg.CreatedAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get message: %w", err)
	}

	return &msg, nil
}

// ListMessagesByBranch returns the ordered, non-deleted messages of a branch
func (r *PostgresMessageRepository) ListMessagesByBranch(ctx context.Context, branchID string) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, branch_id, parent_message_id, content, role, model_used, token_count, is_typing, is_deleted, created_at
		FROM %s
		WHERE branch_id = $1 AND is_deleted = false
		ORDER BY created_at ASC, id ASC
	`, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, branchID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.BranchID,
			&msg.ParentMessageID,
			&msg.Content,
			&msg.Role,
			&msg.ModelUsed,
			&msg.TokenCount,
			&msg.IsTyping,
			&msg.IsDeleted,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	if messages == nil {
		messages = []models.Message{}
	}

	return messages, nil
}

// UpdateMessage applies the non-nil fields of update
func (r *PostgresMessageRepository) UpdateMessage(ctx context.Context, messageID string, update *models.MessageUpdate) (*models.Message, error) {
	sets := []string{}
	args := []interface{}{}
	arg := 1

	if update.Content != nil {
		sets = append(sets, fmt.Sprintf("content = $%d", arg))
		args = append(args, *update.Content)
		arg++
	}
	if update.IsTyping != nil {
		sets = append(sets, fmt.Sprintf("is_typing = $%d", arg))
		args = append(args, *update.IsTyping)
		arg++
	}

	if len(sets) == 0 {
		return r.GetMessage(ctx, messageID)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET %s
		WHERE id = $%d AND is_deleted = false
		RETURNING id, branch_id, parent_message_id, content, role, model_used, token_count, is_typing, is_deleted, created_at
	`, r.tables.Messages, strings.Join(sets, ", "), arg)
	args = append(args, messageID)

	var msg models.Message
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, args...).Scan(
		&msg.ID,
		&msg.BranchID,
		&msg.ParentMessageID,
		&msg.Content,
		&msg.Role,
		&msg.ModelUsed,
		&msg.TokenCount,
		&msg.IsTyping,
		&msg.IsDeleted,
		&msg.CreatedAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update message: %w", err)
	}

	return &msg, nil
}

// SoftDeleteMessage marks a message deleted without removing the row
func (r *PostgresMessageRepository) SoftDeleteMessage(ctx context.Context, messageID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET is_deleted = true WHERE id = $1 AND is_deleted = false
	`, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}

	return nil
}
