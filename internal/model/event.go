package model

import (
	"time"
)

// EventType represents the type of session event.
type EventType string

const (
	EventTypeMessage   EventType = "message"
	EventTypeTyping    EventType = "typing"
	EventTypeTheme     EventType = "theme"
	EventTypeMounted   EventType = "mounted"
	EventTypeUnmounted EventType = "unmounted"
)

// SessionEvent is emitted whenever a session changes.
type SessionEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	Type      EventType `json:"type"`
	Message   *Message  `json:"message,omitempty"`
	Busy      bool      `json:"busy"`
	Theme     Theme     `json:"theme,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
