package models

import (
	"time"
)

// Chat is the top-level conversation container. Every chat owns a tree of
// branches rooted at a single main branch.
type Chat struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Title     string     `json:"title" db:"title"`
	Preview   string     `json:"preview" db:"preview"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ChatListItem is the sidebar projection of a chat.
type ChatListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Preview   string    `json:"preview"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatDetail is a chat with its full branch tree, each branch carrying its
// ordered message log.
type ChatDetail struct {
	Chat
	MainBranchID string               `json:"main_branch_id"`
	Branches     []BranchWithMessages `json:"branches"`
}
