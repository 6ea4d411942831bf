package handler

import (
	"log/slog"
	"net/http"
	"time"

	"corai/internal/domain/services"
	"corai/internal/handler/sse"
	"corai/internal/httputil"
)

// StreamHandler serves the SSE attachment endpoint for live generations.
type StreamHandler struct {
	streamingService services.StreamingService
	sseConfig        *sse.Config
	logger           *slog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(streamingService services.StreamingService, sseConfig *sse.Config, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		streamingService: streamingService,
		sseConfig:        sseConfig,
		logger:           logger,
	}
}

// Stream attaches to a live generation and relays its updates as SSE until
// the generation settles or the client disconnects. The first event replays
// the content accumulated so far.
// GET /api/messages/{id}/stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("id")

	updates, release, ok := h.streamingService.Subscribe(messageID)
	if !ok {
		// Settled or never existed: the message endpoints have the final
		// content.
		httputil.RespondError(w, http.StatusNotFound, "no active generation for this message")
		return
	}
	defer release()

	writer, err := sse.NewEventWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Keepalives share the select loop with event writes: the writer is not
	// safe for concurrent use, so everything that touches the connection
	// happens on this goroutine.
	ticker := time.NewTicker(h.sseConfig.KeepAliveInterval)
	defer ticker.Stop()

	h.logger.Debug("sse client attached", "message_id", messageID)

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("sse client disconnected", "message_id", messageID)
			return

		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				h.logger.Debug("sse client disconnected during keepalive",
					"message_id", messageID,
					"error", err,
				)
				return
			}

		case update, open := <-updates:
			if !open {
				if err := writer.WriteDone(); err != nil {
					h.logger.Warn("failed to write stream terminator",
						"message_id", messageID,
						"error", err,
					)
				}
				return
			}
			if err := writer.WriteJSON(update); err != nil {
				h.logger.Warn("failed to write stream event",
					"message_id", messageID,
					"error", err,
				)
				return
			}
		}
	}
}
