package branch

import (
	"context"
	"fmt"

	"corai/internal/domain"
	"corai/internal/domain/models"
	"corai/internal/domain/services"
)

// Fanout runs the branch creation workflow: for each spec, sequentially
// create the branch, replicate the fork-point message, seed the question,
// and start an independent assistant generation. Branch creation and
// seeding are the backbone of the workflow; a failure there aborts the
// remaining specs. A generation that fails to start only logs: the branch
// and its question are already durable, and the user can retry from there.
func (s *branchService) Fanout(ctx context.Context, req *services.FanoutRequest) (*services.FanoutResult, error) {
	if err := req.Config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := s.authorizeChat(ctx, req.ChatID, req.UserID); err != nil {
		return nil, err
	}

	// Mirror persisted state into the chat's store so the parent can be
	// resolved locally and the post-fan-out tree is checkable.
	branches, err := s.branchRepo.ListBranchesByChat(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}
	s.store(req.ChatID).Replace(branches)

	parentID, err := s.resolveParent(req)
	if err != nil {
		return nil, err
	}

	created := make([]models.Branch, 0, req.Config.BranchCount)
	for i, spec := range req.Config.Branches {
		branch, err := s.createFanoutBranch(ctx, req, spec, parentID, i)
		if err != nil {
			s.logger.Error("fan-out aborted",
				"chat_id", req.ChatID,
				"created", len(created),
				"remaining", req.Config.BranchCount-len(created),
				"error", err,
			)
			return nil, fmt.Errorf("fan-out failed after %d of %d branches: %w",
				len(created), req.Config.BranchCount, err)
		}
		created = append(created, *branch)
		s.store(req.ChatID).Add(*branch)
	}

	// The view lands on the first new branch.
	s.store(req.ChatID).Switch(created[0].ID)
	s.checkTree(req.ChatID)

	result := &services.FanoutResult{
		Branches:       created,
		ActiveBranchID: created[0].ID,
	}

	s.logger.Info("fan-out completed",
		"chat_id", req.ChatID,
		"branches", len(created),
		"active_branch_id", result.ActiveBranchID,
	)
	return result, nil
}

// resolveParent picks the common parent for all new siblings: the branch
// the user is viewing, or the chat's root when none is named. The store is
// already hydrated with the chat's branches, so a branch from another chat
// is simply absent.
func (s *branchService) resolveParent(req *services.FanoutRequest) (string, error) {
	st := s.store(req.ChatID)
	if req.CurrentBranchID != nil {
		if _, ok := st.Get(*req.CurrentBranchID); !ok {
			return "", &domain.NotFoundError{Message: "current branch not found in chat"}
		}
		return *req.CurrentBranchID, nil
	}

	if root, ok := st.Root(); ok {
		return root.ID, nil
	}
	return "", &domain.NotFoundError{Message: "chat has no root branch"}
}

// createFanoutBranch creates one sibling: branch row, replicated fork
// message, seeded question, and (fire-and-forget) its generation.
func (s *branchService) createFanoutBranch(ctx context.Context, req *services.FanoutRequest, spec models.BranchSpec, parentID string, index int) (*models.Branch, error) {
	color := spec.Color
	if color == "" {
		color = models.DefaultBranchColors[index%len(models.DefaultBranchColors)]
	}

	branch := &models.Branch{
		ChatID:         req.ChatID,
		ParentBranchID: &parentID,
		Name:           spec.Name,
		Color:          color,
		Purpose:        req.Config.Purpose,
		Tags:           req.Config.Tags,
		Priority:       req.Config.Priority,
	}

	var seeded []services.Message
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.branchRepo.CreateBranch(txCtx, branch); err != nil {
			return err
		}

		// Replicate the fork-point message so the new branch reads as a
		// continuation, not an orphan.
		if req.ParentMessage != nil {
			fork := &models.Message{
				BranchID:        branch.ID,
				ParentMessageID: &req.ForkMessageID,
				Content:         req.ParentMessage.Content,
				Role:            models.MessageRole(req.ParentMessage.Role),
			}
			if err := s.messageRepo.CreateMessage(txCtx, fork); err != nil {
				return err
			}
			seeded = append(seeded, services.Message{
				Role:    req.ParentMessage.Role,
				Content: req.ParentMessage.Content,
			})
		}

		if spec.Question != "" {
			question := &models.Message{
				BranchID: branch.ID,
				Content:  spec.Question,
				Role:     models.RoleUser,
			}
			if err := s.messageRepo.CreateMessage(txCtx, question); err != nil {
				return err
			}
			seeded = append(seeded, services.Message{
				Role:    string(models.RoleUser),
				Content: spec.Question,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A branch with no question still gets a completion when the copied
	// fork message was a user turn: the copy itself is the prompt. With
	// neither, there is nothing to ask.
	forkIsUserTurn := req.ParentMessage != nil &&
		models.MessageRole(req.ParentMessage.Role) == models.RoleUser
	if spec.Question == "" && !forkIsUserTurn {
		return branch, nil
	}

	model := ""
	if req.Model != nil {
		model = *req.Model
	}
	if _, err := s.streamingSvc.StartGeneration(ctx, &services.GenerationRequest{
		ChatID:   req.ChatID,
		BranchID: branch.ID,
		UserID:   req.UserID,
		Prompt:   seeded,
		Model:    model,
	}); err != nil {
		s.logger.Error("fan-out generation failed to start",
			"chat_id", req.ChatID,
			"branch_id", branch.ID,
			"error", err,
		)
	}

	return branch, nil
}
