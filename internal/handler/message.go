package handler

import (
	"log/slog"
	"net/http"

	"corai/internal/domain/models"
	"corai/internal/domain/services"
	"corai/internal/httputil"
)

// MessageHandler handles message HTTP requests
type MessageHandler struct {
	messageService   services.MessageService
	streamingService services.StreamingService
	logger           *slog.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(
	messageService services.MessageService,
	streamingService services.StreamingService,
	logger *slog.Logger,
) *MessageHandler {
	return &MessageHandler{
		messageService:   messageService,
		streamingService: streamingService,
		logger:           logger,
	}
}

// ListMessages retrieves a branch's messages, live streaming state included
// GET /api/branches/{id}/messages
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	branchID := r.PathValue("id")

	messages, err := h.messageService.ListMessages(r.Context(), branchID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, messages)
}

// AddMessage appends a message to a branch
// POST /api/branches/{id}/messages
func (h *MessageHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	branchID := r.PathValue("id")

	var req services.AddMessageRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.BranchID = branchID
	req.UserID = userID

	msg, err := h.messageService.AddMessage(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, msg)
}

// generateRequest is the JSON body of the generate endpoint.
type generateRequest struct {
	Messages    []services.Message `json:"messages"`
	Model       string             `json:"model,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	MaxTokens   *int               `json:"max_tokens,omitempty"`
}

// Generate starts an assistant generation on a branch
// POST /api/branches/{id}/generate
func (h *MessageHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	branchID := r.PathValue("id")

	var req generateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "messages is required")
		return
	}

	info, err := h.streamingService.StartGeneration(r.Context(), &services.GenerationRequest{
		BranchID:    branchID,
		UserID:      userID,
		Prompt:      req.Messages,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusAccepted, info)
}

// UpdateMessage edits a message's settled fields
// PATCH /api/messages/{id}
func (h *MessageHandler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	messageID := r.PathValue("id")

	var update models.MessageUpdate
	if err := httputil.ParseJSON(w, r, &update); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.messageService.UpdateMessage(r.Context(), messageID, userID, &update)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, msg)
}

// DeleteMessage soft-deletes a message
// DELETE /api/messages/{id}
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	messageID := r.PathValue("id")

	if err := h.messageService.RemoveMessage(r.Context(), messageID, userID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Interrupt cancels an in-flight generation
// POST /api/messages/{id}/interrupt
func (h *MessageHandler) Interrupt(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	messageID := r.PathValue("id")

	if err := h.streamingService.Interrupt(r.Context(), messageID, userID); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "interrupted"})
}
