package model

import (
	"time"
)

// Theme is the display theme of the hosting page.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Session represents one mounted chat widget.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id,omitempty"`
	Theme        Theme     `json:"theme"`
	Busy         bool      `json:"busy"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// CreateSessionRequest is the request to mount a widget.
type CreateSessionRequest struct {
	Theme Theme `json:"theme,omitempty"`
}

// SetThemeRequest is the request to change the session theme.
type SetThemeRequest struct {
	Theme Theme `json:"theme"`
}

// ListSessionsResponse is the response for listing sessions.
type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
}

// StatsResponse summarizes the mounted sessions.
type StatsResponse struct {
	SessionsActive int `json:"sessions_active"`
}
