package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"corai/internal/domain"
	"corai/internal/domain/models"
	"corai/internal/domain/repositories"
)

// PostgresBranchRepository implements the BranchRepository interface using PostgreSQL
type PostgresBranchRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewBranchRepository creates a new PostgresBranchRepository
func NewBranchRepository(config *RepositoryConfig) repositories.BranchRepository {
	return &PostgresBranchRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateBranch creates a new branch. A NULL parent is the chat's root; the
// partial unique index on (chat_id) WHERE parent_branch_id IS NULL turns a
// second root into a conflict.
func (r *PostgresBranchRepository) CreateBranch(ctx context.Context, branch *models.Branch) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (chat_id, parent_branch_id, name, color, purpose, tags, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, r.tables.Branches)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		branch.ChatID,
		branch.ParentBranchID,
		branch.Name,
		branch.Color,
		branch.Purpose,
		branch.Tags,
		branch.Priority,
		branch.CreatedAt,
		branch.UpdatedAt,
	).Scan(&branch.ID, &branch.CreatedAt, &branch.UpdatedAt)

	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("chat %s already has a root branch", branch.ChatID),
				ResourceType: "branch",
			}
		}
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("parent branch: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create branch: %w", err)
	}

	return nil
}

// GetBranch retrieves a branch by ID
func (r *PostgresBranchRepository) GetBranch(ctx context.Context, branchID string) (*models.Branch, error) {
	query := fmt.Sprintf(`
		SELECT id, chat_id, parent_branch_id, name, color, purpose, tags, priority, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.tables.Branches)

	var branch models.Branch
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, branchID).Scan(
		&branch.ID,
		&branch.ChatID,
		&branch.ParentBranchID,
		&branch.Name,
		&branch.Color,
		&branch.Purpose,
		&branch.Tags,
		&branch.Priority,
		&branch.CreatedAt,
		&branch.UpdatedAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("branch %s: %w", branchID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}

	return &branch, nil
}

// ListBranchesByChat retrieves all branches of a chat in creation order
func (r *PostgresBranchRepository) ListBranchesByChat(ctx context.Context, chatID string) ([]models.Branch, error) {
	query := fmt.Sprintf(`
		SELECT id, chat_id, parent_branch_id, name, color, purpose, tags, priority, created_at, updated_at
		FROM %s
		WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC
	`, r.tables.Branches)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	var branches []models.Branch
	for rows.Next() {
		var branch models.Branch
		err := rows.Scan(
			&branch.ID,
			&branch.ChatID,
			&branch.ParentBranchID,
			&branch.Name,
			&branch.Color,
			&branch.Purpose,
			&branch.Tags,
			&branch.Priority,
			&branch.CreatedAt,
			&branch.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		branches = append(branches, branch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}

	if branches == nil {
		branches = []models.Branch{}
	}

	return branches, nil
}

// UpdateBranch applies the non-nil fields of update and bumps updated_at
func (r *PostgresBranchRepository) UpdateBranch(ctx context.Context, branchID string, update *models.BranchUpdate) (*models.Branch, error) {
	sets := []string{}
	args := []interface{}{}
	arg := 1

	addSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, arg))
		args = append(args, value)
		arg++
	}

	if update.Name != nil {
		addSet("name", *update.Name)
	}
	if update.Color != nil {
		addSet("color", *update.Color)
	}
	if update.Purpose != nil {
		addSet("purpose", *update.Purpose)
	}
	if update.Tags != nil {
		addSet("tags", *update.Tags)
	}
	if update.Priority != nil {
		addSet("priority", *update.Priority)
	}

	if len(sets) == 0 {
		return r.GetBranch(ctx, branchID)
	}

	addSet("updated_at", time.Now())

	query := fmt.Sprintf(`
		UPDATE %s
		SET %s
		WHERE id = $%d
		RETURNING id, chat_id, parent_branch_id, name, color, purpose, tags, priority, created_at, updated_at
	`, r.tables.Branches, strings.Join(sets, ", "), arg)
	args = append(args, branchID)

	var branch models.Branch
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, args...).Scan(
		&branch.ID,
		&branch.ChatID,
		&branch.ParentBranchID,
		&branch.Name,
		&branch.Color,
		&branch.Purpose,
		&branch.Tags,
		&branch.Priority,
		&branch.CreatedAt,
		&branch.UpdatedAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("branch %s: %w", branchID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update branch: %w", err)
	}

	return &branch, nil
}

// TouchBranch bumps a branch's updated_at
func (r *PostgresBranchRepository) TouchBranch(ctx context.Context, branchID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET updated_at = $1 WHERE id = $2
	`, r.tables.Branches)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, time.Now(), branchID)
	if err != nil {
		return fmt.Errorf("touch branch: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("branch %s: %w", branchID, domain.ErrNotFound)
	}

	return nil
}

// CountChildren returns the number of direct children of a branch
func (r *PostgresBranchRepository) CountChildren(ctx context.Context, branchID string) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s WHERE parent_branch_id = $1
	`, r.tables.Branches)

	var count int
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, branchID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}

	return count, nil
}

// DeleteBranch removes a branch row and its messages. Run inside a
// transaction by the service layer.
func (r *PostgresBranchRepository) DeleteBranch(ctx context.Context, branchID string) error {
	executor := GetExecutor(ctx, r.pool)

	deleteMessages := fmt.Sprintf(`DELETE FROM %s WHERE branch_id = $1`, r.tables.Messages)
	if _, err := executor.Exec(ctx, deleteMessages, branchID); err != nil {
		return fmt.Errorf("delete branch messages: %w", err)
	}

	deleteBranch := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Branches)
	result, err := executor.Exec(ctx, deleteBranch, branchID)
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("branch %s: %w", branchID, domain.ErrNotFound)
	}

	return nil
}
