// Package model defines data structures for the StoryBot assistant.
package model

import (
	"time"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is a single conversational turn.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`

	// Intent is the classifier label that produced an assistant message.
	Intent string `json:"intent,omitempty"`
}

// Clock renders the timestamp the way the widget shows it.
func (m Message) Clock() string {
	return m.Timestamp.Format("15:04")
}

// SubmitMessageRequest is the request to submit an utterance.
type SubmitMessageRequest struct {
	Text string `json:"text"`
	Wait bool   `json:"wait,omitempty"`
}

// SubmitMessageResponse is the response after submitting an utterance.
type SubmitMessageResponse struct {
	UserMessage      *Message `json:"user_message"`
	AssistantMessage *Message `json:"assistant_message,omitempty"`
	Busy             bool     `json:"busy"`
}

// ListMessagesResponse is the response for reading a transcript.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	Busy     bool      `json:"busy"`
}

// ClassifyRequest asks for a stateless classification.
type ClassifyRequest struct {
	Text  string `json:"text"`
	Theme Theme  `json:"theme,omitempty"`
}

// ClassifyResponse is the classifier output.
type ClassifyResponse struct {
	Intent   string `json:"intent"`
	Response string `json:"response"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
