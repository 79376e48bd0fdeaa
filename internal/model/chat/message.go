package chat

import "time"

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable transcript entry. Insertion order is display order.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Mood      string    `json:"mood,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
