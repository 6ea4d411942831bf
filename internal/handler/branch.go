package handler

import (
	"log/slog"
	"net/http"

	"corai/internal/domain/models"
	"corai/internal/domain/services"
	"corai/internal/httputil"
)

// BranchHandler handles branch HTTP requests
type BranchHandler struct {
	branchService services.BranchService
	logger        *slog.Logger
}

// NewBranchHandler creates a new branch handler
func NewBranchHandler(branchService services.BranchService, logger *slog.Logger) *BranchHandler {
	return &BranchHandler{
		branchService: branchService,
		logger:        logger,
	}
}

// ListBranches retrieves all branches of a chat with nested messages
// GET /api/chats/{id}/branches
func (h *BranchHandler) ListBranches(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	chatID := r.PathValue("id")

	branches, err := h.branchService.ListBranches(r.Context(), chatID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, branches)
}

// CreateBranch creates a single branch under an explicit parent
// POST /api/chats/{id}/branches
func (h *BranchHandler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	chatID := r.PathValue("id")

	var req services.CreateBranchRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ChatID = chatID
	req.UserID = userID

	branch, err := h.branchService.CreateBranch(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, branch)
}

// Fanout creates 1-5 sibling branches from one fork point and starts their
// assistant generations
// POST /api/chats/{id}/branches/fanout
func (h *BranchHandler) Fanout(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	chatID := r.PathValue("id")

	var req services.FanoutRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ChatID = chatID
	req.UserID = userID

	result, err := h.branchService.Fanout(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, result)
}

// UpdateBranch persists name/color/metadata changes
// PATCH /api/branches/{id}
func (h *BranchHandler) UpdateBranch(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	branchID := r.PathValue("id")

	var update models.BranchUpdate
	if err := httputil.ParseJSON(w, r, &update); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	branch, err := h.branchService.UpdateBranch(r.Context(), branchID, userID, &update)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, branch)
}

// DeleteBranch removes a non-root, childless branch
// DELETE /api/branches/{id}
func (h *BranchHandler) DeleteBranch(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	branchID := r.PathValue("id")

	if err := h.branchService.DeleteBranch(r.Context(), branchID, userID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
