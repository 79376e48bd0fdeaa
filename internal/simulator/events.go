package simulator

import (
	"time"

	"github.com/zhouzirui/pulse-hr/backend/internal/model/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/model/wellness"
)

// EventType classifies simulator notifications.
type EventType string

const (
	EventMessage EventType = "message"
	EventTyping  EventType = "typing"
	EventMetrics EventType = "metrics"
	EventReset   EventType = "reset"
)

// Event is pushed to subscribers whenever the read model changes.
type Event struct {
	Type      EventType         `json:"type"`
	SessionID string            `json:"sessionId,omitempty"`
	Message   *chat.Message     `json:"message,omitempty"`
	Metrics   *wellness.Metrics `json:"metrics,omitempty"`
	Pending   bool              `json:"pending"`
	At        time.Time         `json:"at"`
}

// Snapshot is a consistent copy of the simulator state.
type Snapshot struct {
	Transcript []chat.Message   `json:"transcript"`
	Metrics    wellness.Metrics `json:"metrics"`
	Pending    bool             `json:"pending"`
	Queued     int              `json:"queued"`
}
