package state

import (
	"sort"
	"sync"

	"corai/internal/domain/models"
)

// MessageStore is a per-chat overlay of messages that exist locally but are
// not yet (or not fully) persisted: the user message just typed, and the
// assistant placeholder a generation is streaming into. Reads merge the
// overlay over persisted rows via MergeMessages.
//
// Keys are branch IDs; within a branch messages keep arrival order.
type MessageStore struct {
	mu      sync.RWMutex
	overlay map[string][]models.Message
}

// NewMessageStore creates an empty overlay.
func NewMessageStore() *MessageStore {
	return &MessageStore{overlay: make(map[string][]models.Message)}
}

// Put inserts or updates one overlay message on its branch. An existing
// entry with the same ID is replaced in place so streaming updates do not
// reorder the conversation.
func (s *MessageStore) Put(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.overlay[msg.BranchID]
	for i := range msgs {
		if msgs[i].ID == msg.ID {
			msgs[i] = msg
			return
		}
	}
	s.overlay[msg.BranchID] = append(msgs, msg)
}

// Get returns one overlay message by ID.
func (s *MessageStore) Get(branchID, messageID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.overlay[branchID] {
		if m.ID == messageID {
			return m, true
		}
	}
	return models.Message{}, false
}

// Branch returns the overlay messages for a branch in arrival order.
func (s *MessageStore) Branch(branchID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.overlay[branchID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Drop removes one overlay message, typically once the persisted row has
// caught up or a generation was cancelled.
func (s *MessageStore) Drop(branchID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.overlay[branchID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			s.overlay[branchID] = append(msgs[:i], msgs[i+1:]...)
			if len(s.overlay[branchID]) == 0 {
				delete(s.overlay, branchID)
			}
			return
		}
	}
}

// DropBranch clears the overlay for a whole branch.
func (s *MessageStore) DropBranch(branchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overlay, branchID)
}

// MergeMessages reconciles persisted rows with local overlay messages for
// one branch. The result is ordered by (CreatedAt, ID) and deduplicated by
// ID with one asymmetric rule: a persisted completed message wins over a
// local copy still marked typing, while a local message that finished
// streaming ahead of its persisted row wins over the stale row. Deleted
// rows are filtered out. The function is pure: inputs are not modified.
func MergeMessages(persisted, local []models.Message) []models.Message {
	byID := make(map[string]models.Message, len(persisted)+len(local))
	order := make([]models.Message, 0, len(persisted)+len(local))

	add := func(m models.Message) {
		if m.IsDeleted {
			return
		}
		prev, ok := byID[m.ID]
		if !ok {
			byID[m.ID] = m
			order = append(order, m)
			return
		}
		// Same ID twice: prefer whichever side is no longer typing.
		if prev.IsTyping && !m.IsTyping {
			byID[m.ID] = m
			for i := range order {
				if order[i].ID == m.ID {
					order[i] = m
					break
				}
			}
		}
	}

	for _, m := range persisted {
		add(m)
	}
	for _, m := range local {
		add(m)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].CreatedAt.Equal(order[j].CreatedAt) {
			return order[i].ID < order[j].ID
		}
		return order[i].CreatedAt.Before(order[j].CreatedAt)
	})
	return order
}
