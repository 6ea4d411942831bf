package models

import (
	"time"
)

// MessageRole is the author of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ValidRole reports whether role is one of the three supported roles.
func ValidRole(role MessageRole) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message belongs to exactly one branch. ParentMessageID references the
// fork-point message in another branch when this message was copied during
// a branch fan-out, and is nil otherwise.
//
// IsTyping marks an assistant reply that is still being generated; it is
// cleared by the final write of the streaming relay. IsDeleted is a soft
// delete: excluded from reads, never physically removed.
type Message struct {
	ID              string      `json:"id" db:"id"`
	BranchID        string      `json:"branch_id" db:"branch_id"`
	ParentMessageID *string     `json:"parent_message_id" db:"parent_message_id"`
	Content         string      `json:"content" db:"content"`
	Role            MessageRole `json:"role" db:"role"`
	ModelUsed       *string     `json:"model_used,omitempty" db:"model_used"`
	TokenCount      *int        `json:"token_count,omitempty" db:"token_count"`
	IsTyping        bool        `json:"is_typing" db:"is_typing"`
	IsDeleted       bool        `json:"-" db:"is_deleted"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

// MessageUpdate carries the settled-change fields of a message PATCH.
// Nil fields are left unchanged.
type MessageUpdate struct {
	Content  *string `json:"content,omitempty"`
	IsTyping *bool   `json:"is_typing,omitempty"`
}
