package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/inkwell/storybot/internal/model"
	"github.com/inkwell/storybot/pkg/metrics"
)

const (
	// StreamName is the name of the transcript stream.
	StreamName = "STORYBOT"

	// SubjectPrefix is the prefix for all transcript subjects.
	SubjectPrefix = "storybot"

	// StreamMaxAge bounds how long transcripts stay in the stream.
	StreamMaxAge = 24 * time.Hour
)

// StreamManager publishes transcripts to JetStream. The stream is an
// outbound feed for analytics; the service never reads it back.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the transcript stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamMaxAge,
		MaxBytes:    1024 * 1024 * 1024, // 1GB
		Storage:     jetstream.MemoryStorage,
		Replicas:    1,
		Description: "StoryBot chat transcripts and session events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// MessageSubject returns the subject for a message.
func MessageSubject(sessionID string, sender model.Sender) string {
	return fmt.Sprintf("%s.%s.msg.%s", SubjectPrefix, token(sessionID), sender)
}

// EventSubject returns the subject for a session event.
func EventSubject(sessionID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.event.%s", SubjectPrefix, token(sessionID), eventType)
}

// SessionFilter returns the filter subject for everything in a session.
func SessionFilter(sessionID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, token(sessionID))
}

// token keeps a subject token free of separators and wildcards.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

// PublishMessage publishes a message to JetStream.
func (m *StreamManager) PublishMessage(ctx context.Context, msg *model.Message) (uint64, error) {
	subject := MessageSubject(msg.SessionID, msg.Sender)

	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data, jetstream.WithMsgID(msg.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish message: %w", err)
	}

	return ack.Sequence, nil
}

// PublishEvent publishes a session event to JetStream.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.SessionEvent) (uint64, error) {
	subject := EventSubject(event.SessionID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}

// RecordStats refreshes the stream gauges.
func (m *StreamManager) RecordStats(ctx context.Context) error {
	stream, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return fmt.Errorf("failed to get stream: %w", err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	metrics.NATSStreamMessages.WithLabelValues(StreamName).Set(float64(info.State.Msgs))
	metrics.NATSStreamBytes.WithLabelValues(StreamName).Set(float64(info.State.Bytes))
	return nil
}
