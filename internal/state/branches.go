// Package state holds the in-memory side of the branch/message model: the
// branch arena with its derived child index, the live message overlay used
// while assistant replies stream in, and the pure merge function that
// reconciles server state with local optimistic state.
package state

import (
	"fmt"
	"sort"
	"sync"

	"corai/internal/domain/models"
)

// BranchStore maintains the set of branches for one chat and the currently
// selected branch. Branches live in an arena keyed by ID with a derived
// parent-to-children adjacency index, recomputed on structural change, so
// the tree invariants stay mechanically checkable.
//
// All methods are safe for concurrent use.
type BranchStore struct {
	mu       sync.RWMutex
	chatID   string
	arena    map[string]*models.Branch
	children map[string][]string
	activeID string
}

// NewBranchStore creates an empty store for a chat.
func NewBranchStore(chatID string) *BranchStore {
	return &BranchStore{
		chatID:   chatID,
		arena:    make(map[string]*models.Branch),
		children: make(map[string][]string),
	}
}

// Replace swaps in server state wholesale. The active pointer is preserved
// when the active branch survives, otherwise it moves to the root.
func (s *BranchStore) Replace(branches []models.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.arena = make(map[string]*models.Branch, len(branches))
	for i := range branches {
		b := branches[i]
		s.arena[b.ID] = &b
	}
	s.reindex()

	if _, ok := s.arena[s.activeID]; !ok {
		s.activeID = s.rootID()
	}
}

// Add inserts one branch into the arena.
func (s *BranchStore) Add(branch models.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.arena[branch.ID] = &branch
	s.reindex()
}

// Get returns a copy of a branch.
func (s *BranchStore) Get(branchID string) (models.Branch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.arena[branchID]
	if !ok {
		return models.Branch{}, false
	}
	return *b, true
}

// List returns all branches in creation order.
func (s *BranchStore) List() []models.Branch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Branch, 0, len(s.arena))
	for _, b := range s.arena {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Children returns the direct child IDs of a branch.
func (s *BranchStore) Children(branchID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kids := s.children[branchID]
	out := make([]string, len(kids))
	copy(out, kids)
	return out
}

// Switch moves the active pointer. Purely a navigation concern: no storage
// round-trip, and the caller is responsible for the branch existing.
func (s *BranchStore) Switch(branchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = branchID
}

// Active returns the currently selected branch ID, or "" when unset.
func (s *BranchStore) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Remove deletes a branch from local state. If it was active, the pointer
// moves to the root (or any remaining branch, or becomes unset).
func (s *BranchStore) Remove(branchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.arena, branchID)
	s.reindex()

	if s.activeID == branchID {
		s.activeID = s.rootID()
		if s.activeID == "" {
			for id := range s.arena {
				s.activeID = id
				break
			}
		}
	}
}

// Update patches a branch's mutable fields and bumps UpdatedAt.
func (s *BranchStore) Update(branch models.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.arena[branch.ID]; !ok {
		return
	}
	s.arena[branch.ID] = &branch
	s.reindex()
}

// Root returns the root branch, if present.
func (s *BranchStore) Root() (models.Branch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := s.rootID()
	if id == "" {
		return models.Branch{}, false
	}
	return *s.arena[id], true
}

// Validate mechanically checks the tree invariants: exactly one root, every
// parent present and in the same chat, and no cycles.
func (s *BranchStore) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.arena) == 0 {
		return nil
	}

	roots := 0
	for _, b := range s.arena {
		if b.ChatID != s.chatID {
			return fmt.Errorf("branch %s belongs to chat %s, store is for %s", b.ID, b.ChatID, s.chatID)
		}
		if b.ParentBranchID == nil {
			roots++
			continue
		}
		if _, ok := s.arena[*b.ParentBranchID]; !ok {
			return fmt.Errorf("branch %s has unknown parent %s", b.ID, *b.ParentBranchID)
		}
	}
	if roots != 1 {
		return fmt.Errorf("chat %s has %d root branches, want exactly 1", s.chatID, roots)
	}

	// Walk up from every branch; revisiting a node within one walk is a cycle.
	for id := range s.arena {
		seen := map[string]bool{}
		cur := s.arena[id]
		for cur.ParentBranchID != nil {
			if seen[cur.ID] {
				return fmt.Errorf("cycle detected at branch %s", cur.ID)
			}
			seen[cur.ID] = true
			cur = s.arena[*cur.ParentBranchID]
		}
	}

	return nil
}

// reindex recomputes the parent-to-children adjacency. Caller holds mu.
func (s *BranchStore) reindex() {
	s.children = make(map[string][]string, len(s.arena))
	for id, b := range s.arena {
		if b.ParentBranchID != nil {
			parent := *b.ParentBranchID
			s.children[parent] = append(s.children[parent], id)
		}
	}
	for _, kids := range s.children {
		sort.Strings(kids)
	}
}

// rootID finds the branch with a nil parent. Caller holds mu.
func (s *BranchStore) rootID() string {
	for id, b := range s.arena {
		if b.ParentBranchID == nil {
			return id
		}
	}
	return ""
}
