package state

import (
	"testing"
	"time"

	"corai/internal/domain/models"
)

func testBranch(id, chatID string, parent *string, created time.Time) models.Branch {
	return models.Branch{
		ID:             id,
		ChatID:         chatID,
		ParentBranchID: parent,
		Name:           "branch " + id,
		Color:          models.DefaultBranchColors[0],
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestBranchStoreSingleRoot(t *testing.T) {
	now := time.Now()
	root := "root-1"

	tests := []struct {
		name     string
		branches []models.Branch
		wantErr  bool
	}{
		{
			name:     "empty store is valid",
			branches: nil,
			wantErr:  false,
		},
		{
			name: "single root with children",
			branches: []models.Branch{
				testBranch("root-1", "chat-1", nil, now),
				testBranch("b-2", "chat-1", &root, now.Add(time.Second)),
				testBranch("b-3", "chat-1", &root, now.Add(2*time.Second)),
			},
			wantErr: false,
		},
		{
			name: "two roots",
			branches: []models.Branch{
				testBranch("root-1", "chat-1", nil, now),
				testBranch("root-2", "chat-1", nil, now),
			},
			wantErr: true,
		},
		{
			name: "no root",
			branches: []models.Branch{
				testBranch("b-2", "chat-1", &root, now),
				testBranch("root-1", "chat-1", &root, now),
			},
			wantErr: true,
		},
		{
			name: "dangling parent",
			branches: []models.Branch{
				testBranch("root-1", "chat-1", nil, now),
				func() models.Branch {
					missing := "gone"
					return testBranch("b-2", "chat-1", &missing, now)
				}(),
			},
			wantErr: true,
		},
		{
			name: "wrong chat",
			branches: []models.Branch{
				testBranch("root-1", "chat-2", nil, now),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewBranchStore("chat-1")
			store.Replace(tt.branches)
			err := store.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBranchStoreChildren(t *testing.T) {
	now := time.Now()
	root := "root-1"
	store := NewBranchStore("chat-1")
	store.Replace([]models.Branch{
		testBranch("root-1", "chat-1", nil, now),
		testBranch("b-2", "chat-1", &root, now.Add(time.Second)),
		testBranch("b-3", "chat-1", &root, now.Add(2*time.Second)),
	})

	kids := store.Children("root-1")
	if len(kids) != 2 {
		t.Fatalf("Children(root-1) = %v, want 2 entries", kids)
	}
	if kids[0] != "b-2" || kids[1] != "b-3" {
		t.Errorf("Children(root-1) = %v, want [b-2 b-3]", kids)
	}
	if got := store.Children("b-2"); len(got) != 0 {
		t.Errorf("Children(b-2) = %v, want empty", got)
	}
}

func TestBranchStoreSwitchIsLocal(t *testing.T) {
	now := time.Now()
	root := "root-1"
	store := NewBranchStore("chat-1")
	store.Replace([]models.Branch{
		testBranch("root-1", "chat-1", nil, now),
		testBranch("b-2", "chat-1", &root, now.Add(time.Second)),
	})

	if got := store.Active(); got != "root-1" {
		t.Fatalf("Active() after Replace = %q, want root-1", got)
	}

	store.Switch("b-2")
	if got := store.Active(); got != "b-2" {
		t.Errorf("Active() after Switch = %q, want b-2", got)
	}
}

func TestBranchStoreRemoveMovesActiveToRoot(t *testing.T) {
	now := time.Now()
	root := "root-1"
	store := NewBranchStore("chat-1")
	store.Replace([]models.Branch{
		testBranch("root-1", "chat-1", nil, now),
		testBranch("b-2", "chat-1", &root, now.Add(time.Second)),
	})
	store.Switch("b-2")

	store.Remove("b-2")
	if got := store.Active(); got != "root-1" {
		t.Errorf("Active() after removing active branch = %q, want root-1", got)
	}
	if _, ok := store.Get("b-2"); ok {
		t.Error("Get(b-2) still present after Remove")
	}
}

func TestBranchStoreListOrder(t *testing.T) {
	now := time.Now()
	root := "root-1"
	store := NewBranchStore("chat-1")
	store.Add(testBranch("b-3", "chat-1", &root, now.Add(2*time.Second)))
	store.Add(testBranch("root-1", "chat-1", nil, now))
	store.Add(testBranch("b-2", "chat-1", &root, now.Add(time.Second)))

	list := store.List()
	want := []string{"root-1", "b-2", "b-3"}
	if len(list) != len(want) {
		t.Fatalf("List() returned %d branches, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("List()[%d].ID = %q, want %q", i, list[i].ID, id)
		}
	}
}
