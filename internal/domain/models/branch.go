package models

import (
	"time"
)

// Branch is one node in a chat's conversation tree. The root ("main") branch
// has a nil ParentBranchID; every other branch points at a parent in the
// same chat. Branches are never re-parented after creation.
type Branch struct {
	ID             string    `json:"id" db:"id"`
	ChatID         string    `json:"chat_id" db:"chat_id"`
	ParentBranchID *string   `json:"parent_branch_id" db:"parent_branch_id"`
	Name           string    `json:"name" db:"name"`
	Color          string    `json:"color" db:"color"`
	Purpose        *string   `json:"purpose,omitempty" db:"purpose"`
	Tags           []string  `json:"tags,omitempty" db:"tags"`
	Priority       *string   `json:"priority,omitempty" db:"priority"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// IsRoot reports whether this is the chat's main branch.
func (b *Branch) IsRoot() bool {
	return b.ParentBranchID == nil
}

// BranchWithMessages is the nested projection returned by the branch listing
// endpoint: a branch plus its ordered, non-deleted messages.
type BranchWithMessages struct {
	Branch
	Messages []Message `json:"messages"`
}

// BranchUpdate carries the persistable fields of a branch PATCH. Nil fields
// are left unchanged.
type BranchUpdate struct {
	Name     *string   `json:"name,omitempty"`
	Color    *string   `json:"color,omitempty"`
	Purpose  *string   `json:"purpose,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Priority *string   `json:"priority,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u *BranchUpdate) IsEmpty() bool {
	return u.Name == nil && u.Color == nil && u.Purpose == nil && u.Tags == nil && u.Priority == nil
}

// DefaultBranchColors is the palette cycled through when branch specs do not
// name a color. The first entry is also the root branch color.
var DefaultBranchColors = []string{
	"#3b82f6", // blue
	"#10b981", // green
	"#f59e0b", // yellow
	"#ef4444", // red
	"#8b5cf6", // purple
	"#06b6d4", // cyan
	"#f97316", // orange
	"#84cc16", // lime
}

// RootBranchName is the name given to the implicit branch created with
// every chat.
const RootBranchName = "Main"
