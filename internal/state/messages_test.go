package state

import (
	"testing"
	"time"

	"corai/internal/domain/models"
)

func testMessage(id, branchID, content string, role models.MessageRole, typing bool, created time.Time) models.Message {
	return models.Message{
		ID:        id,
		BranchID:  branchID,
		Content:   content,
		Role:      role,
		IsTyping:  typing,
		CreatedAt: created,
	}
}

func TestMergeMessagesOrderAndDedup(t *testing.T) {
	now := time.Now()

	persisted := []models.Message{
		testMessage("m-1", "b-1", "hello", models.RoleUser, false, now),
		testMessage("m-2", "b-1", "partial", models.RoleAssistant, true, now.Add(time.Second)),
	}
	local := []models.Message{
		testMessage("m-2", "b-1", "full reply", models.RoleAssistant, false, now.Add(time.Second)),
		testMessage("m-3", "b-1", "follow up", models.RoleUser, false, now.Add(2*time.Second)),
	}

	got := MergeMessages(persisted, local)
	if len(got) != 3 {
		t.Fatalf("MergeMessages returned %d messages, want 3", len(got))
	}
	wantIDs := []string{"m-1", "m-2", "m-3"}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("merged[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
	if got[1].Content != "full reply" || got[1].IsTyping {
		t.Errorf("merged m-2 = %+v, want completed local copy to win", got[1])
	}
}

func TestMergeMessagesPersistedCompletedWins(t *testing.T) {
	now := time.Now()

	persisted := []models.Message{
		testMessage("m-1", "b-1", "final answer", models.RoleAssistant, false, now),
	}
	local := []models.Message{
		testMessage("m-1", "b-1", "final ans", models.RoleAssistant, true, now),
	}

	got := MergeMessages(persisted, local)
	if len(got) != 1 {
		t.Fatalf("MergeMessages returned %d messages, want 1", len(got))
	}
	if got[0].Content != "final answer" || got[0].IsTyping {
		t.Errorf("merged m-1 = %+v, want persisted completed row to win", got[0])
	}
}

func TestMergeMessagesFiltersDeleted(t *testing.T) {
	now := time.Now()

	deleted := testMessage("m-1", "b-1", "gone", models.RoleAssistant, false, now)
	deleted.IsDeleted = true
	persisted := []models.Message{
		deleted,
		testMessage("m-2", "b-1", "kept", models.RoleUser, false, now.Add(time.Second)),
	}

	got := MergeMessages(persisted, nil)
	if len(got) != 1 || got[0].ID != "m-2" {
		t.Errorf("MergeMessages = %+v, want only m-2", got)
	}
}

func TestMergeMessagesIsPure(t *testing.T) {
	now := time.Now()

	persisted := []models.Message{
		testMessage("m-1", "b-1", "partial", models.RoleAssistant, true, now),
	}
	local := []models.Message{
		testMessage("m-1", "b-1", "complete", models.RoleAssistant, false, now),
	}

	MergeMessages(persisted, local)

	if persisted[0].Content != "partial" || !persisted[0].IsTyping {
		t.Errorf("persisted input mutated: %+v", persisted[0])
	}
}

func TestMessageStorePutReplacesInPlace(t *testing.T) {
	now := time.Now()
	store := NewMessageStore()

	store.Put(testMessage("m-1", "b-1", "first", models.RoleUser, false, now))
	store.Put(testMessage("m-2", "b-1", "", models.RoleAssistant, true, now.Add(time.Second)))
	store.Put(testMessage("m-2", "b-1", "stream so far", models.RoleAssistant, true, now.Add(time.Second)))

	msgs := store.Branch("b-1")
	if len(msgs) != 2 {
		t.Fatalf("Branch(b-1) returned %d messages, want 2", len(msgs))
	}
	if msgs[1].ID != "m-2" || msgs[1].Content != "stream so far" {
		t.Errorf("Branch(b-1)[1] = %+v, want updated m-2 in place", msgs[1])
	}
}

func TestMessageStoreDrop(t *testing.T) {
	now := time.Now()
	store := NewMessageStore()
	store.Put(testMessage("m-1", "b-1", "only", models.RoleUser, false, now))

	store.Drop("b-1", "m-1")
	if got := store.Branch("b-1"); len(got) != 0 {
		t.Errorf("Branch(b-1) after Drop = %v, want empty", got)
	}
	if _, ok := store.Get("b-1", "m-1"); ok {
		t.Error("Get(m-1) still present after Drop")
	}
}
