package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"corai/internal/domain/services"
	"corai/internal/handler/sse"
)

type stubStreamer struct {
	updates  chan services.StreamUpdate
	active   bool
	released bool
}

func (s *stubStreamer) StartGeneration(ctx context.Context, req *services.GenerationRequest) (*services.GenerationInfo, error) {
	return nil, nil
}

func (s *stubStreamer) Interrupt(ctx context.Context, messageID, userID string) error {
	return nil
}

func (s *stubStreamer) Subscribe(messageID string) (<-chan services.StreamUpdate, func(), bool) {
	if !s.active {
		return nil, nil, false
	}
	return s.updates, func() { s.released = true }, true
}

func TestStreamRelaysUpdatesAndKeepalives(t *testing.T) {
	updates := make(chan services.StreamUpdate, 4)
	streamer := &stubStreamer{updates: updates, active: true}
	h := NewStreamHandler(streamer, &sse.Config{KeepAliveInterval: 5 * time.Millisecond}, slog.New(slog.DiscardHandler))

	updates <- services.StreamUpdate{Type: services.StreamDelta, Content: "Hello"}
	go func() {
		// Leave the connection idle long enough for keepalive ticks.
		time.Sleep(30 * time.Millisecond)
		updates <- services.StreamUpdate{Type: services.StreamDone, Content: "Hello, world"}
		close(updates)
	}()

	req := httptest.NewRequest(http.MethodGet, "/api/messages/msg-1/stream", nil)
	req.SetPathValue("id", "msg-1")
	rec := httptest.NewRecorder()
	h.Stream(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `"type":"delta"`) {
		t.Errorf("stream output missing delta event:\n%s", body)
	}
	if !strings.Contains(body, ": keepalive\n\n") {
		t.Errorf("stream output missing keepalive comment:\n%s", body)
	}
	if !strings.Contains(body, "data: [DONE]\n\n") {
		t.Errorf("stream output missing terminator:\n%s", body)
	}
	if !streamer.released {
		t.Error("subscription not released after stream ended")
	}
}

func TestStreamWithoutActiveGeneration(t *testing.T) {
	h := NewStreamHandler(&stubStreamer{}, sse.DefaultConfig(), slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodGet, "/api/messages/msg-9/stream", nil)
	req.SetPathValue("id", "msg-9")
	rec := httptest.NewRecorder()
	h.Stream(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
