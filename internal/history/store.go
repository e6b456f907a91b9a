package history

import (
	"context"
	"time"
)

// Conversation roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a user's conversation window
type Turn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"ts"`
}

// NewTurn creates a turn stamped with the current time
func NewTurn(role, content string) Turn {
	return Turn{Role: role, Content: content, Timestamp: time.Now().Unix()}
}

// Store is the conversation context store. Load never fails: backends that
// are unreachable degrade to whatever history is available, and a user
// without history gets an empty window.
type Store interface {
	Load(ctx context.Context, userID int64) []Turn
	Append(ctx context.Context, userID int64, role, content string)
	Clear(ctx context.Context, userID int64)
}

// maxEntries is the window cap: one user and one assistant entry per turn
func maxEntries(turns int) int {
	return turns * 2
}
