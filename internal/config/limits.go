package config

import "time"

const (
	// MaxChatTitleLength is the maximum length for chat titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255) and provide
	// reasonable UX (titles should be short and descriptive).
	MaxChatTitleLength = 255

	// MaxBranchNameLength is the maximum length for branch names.
	// Same as chat titles for consistency.
	MaxBranchNameLength = 255

	// MinBranchFanout and MaxBranchFanout bound how many sibling branches
	// a single fan-out request may create from one fork point.
	MinBranchFanout = 1
	MaxBranchFanout = 5

	// ChatPreviewLength is the number of runes of the latest user message
	// kept as the chat list preview.
	ChatPreviewLength = 50

	// StreamFlushInterval bounds how often a streaming assistant message is
	// persisted while fragments are still arriving. One flush timer exists
	// per in-flight generation.
	StreamFlushInterval = 500 * time.Millisecond

	// DefaultModel is the assistant model used when the caller does not
	// specify one.
	DefaultModel = "gpt-4o-mini"

	// DefaultTemperature and DefaultMaxTokens are the completion defaults
	// applied when the caller does not override them.
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)
