package chat

import "time"

// Session captures a transient anonymous wellness conversation.
type Session struct {
	ID          string    `json:"id"`
	CompanionID string    `json:"companionId"`
	CreatedAt   time.Time `json:"createdAt"`
}
