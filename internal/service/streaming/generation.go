package streaming

import (
	"context"
	"sync"
	"time"

	"corai/internal/domain/services"
)

// subscriberBuffer bounds a subscriber channel. A consumer that falls this
// far behind starts losing intermediate deltas; the done event always
// carries the full text, so nothing is lost for good.
const subscriberBuffer = 64

// generation is the in-memory handle for one in-flight assistant reply. It
// accumulates fragments, fans them out to subscribers, and owns the flush
// timer that throttles intermediate persistence.
type generation struct {
	id        string
	messageID string
	branchID  string
	chatID    string
	userID    string
	model     string

	cancel context.CancelCauseFunc

	mu          sync.Mutex
	content     string
	done        bool
	final       *services.StreamUpdate
	subscribers map[int]chan services.StreamUpdate
	nextSubID   int

	// flush timer state, guarded by mu. At most one timer is armed at a
	// time; fragments arriving while one is pending ride along with it.
	flushPending bool
	flushTimer   *time.Timer
}

func newGeneration(id, messageID, branchID, chatID, userID, model string, cancel context.CancelCauseFunc) *generation {
	return &generation{
		id:          id,
		messageID:   messageID,
		branchID:    branchID,
		chatID:      chatID,
		userID:      userID,
		model:       model,
		cancel:      cancel,
		subscribers: make(map[int]chan services.StreamUpdate),
	}
}

// append adds a fragment and broadcasts it. Returns the accumulated content
// and whether a flush should be scheduled (false while one is pending).
func (g *generation) append(fragment string, interval time.Duration, flush func()) {
	g.mu.Lock()
	g.content += fragment
	if !g.flushPending {
		g.flushPending = true
		g.flushTimer = time.AfterFunc(interval, flush)
	}
	g.broadcastLocked(services.StreamUpdate{Type: services.StreamDelta, Content: fragment})
	g.mu.Unlock()
}

// Content returns the accumulated content.
func (g *generation) Content() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.content
}

// snapshot returns the accumulated content and clears the pending-flush
// flag so the next fragment arms a fresh timer.
func (g *generation) snapshot() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.flushPending = false
	return g.content
}

// finish marks the generation settled, stops any armed flush timer, sends
// the terminal update, and closes every subscriber channel. Returns the
// full accumulated content.
func (g *generation) finish(final services.StreamUpdate) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done {
		return g.content
	}
	g.done = true
	g.final = &final
	if g.flushTimer != nil {
		g.flushTimer.Stop()
	}

	g.broadcastLocked(final)
	for id, ch := range g.subscribers {
		close(ch)
		delete(g.subscribers, id)
	}
	return g.content
}

// subscribe attaches a consumer. The accumulated content is replayed as the
// first delta so late subscribers catch up before live fragments resume.
func (g *generation) subscribe() (<-chan services.StreamUpdate, func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done {
		return nil, nil, false
	}

	ch := make(chan services.StreamUpdate, subscriberBuffer)
	if g.content != "" {
		ch <- services.StreamUpdate{Type: services.StreamDelta, Content: g.content}
	}

	id := g.nextSubID
	g.nextSubID++
	g.subscribers[id] = ch

	release := func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if _, ok := g.subscribers[id]; ok {
			delete(g.subscribers, id)
			close(ch)
		}
	}
	return ch, release, true
}

// broadcastLocked sends an update to every subscriber without blocking the
// relay. Caller holds mu.
func (g *generation) broadcastLocked(update services.StreamUpdate) {
	for _, ch := range g.subscribers {
		select {
		case ch <- update:
		default:
		}
	}
}
