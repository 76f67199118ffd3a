package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell/storybot/internal/model"
	"github.com/inkwell/storybot/pkg/logger"
	"github.com/inkwell/storybot/pkg/metrics"
)

const (
	transcriptBacklog = 1024
	publishTimeout    = 2 * time.Second
)

// transcriptEntry is either a message or a session event.
type transcriptEntry struct {
	message *model.Message
	event   *model.SessionEvent
}

// transcriptQueue publishes entries in order on its own goroutine so a
// slow feed never holds up a turn. Entries are dropped when the backlog
// is full.
type transcriptQueue struct {
	publisher TranscriptPublisher
	logger    *logger.Logger

	mu      sync.RWMutex
	stopped bool
	entries chan transcriptEntry
	done    chan struct{}
}

func newTranscriptQueue(publisher TranscriptPublisher, log *logger.Logger) *transcriptQueue {
	q := &transcriptQueue{
		publisher: publisher,
		logger:    log,
		entries:   make(chan transcriptEntry, transcriptBacklog),
		done:      make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *transcriptQueue) enqueue(entry transcriptEntry) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return
	}

	select {
	case q.entries <- entry:
	default:
		metrics.TranscriptPublishFailures.WithLabelValues("dropped").Inc()
		q.logger.Warn("transcript backlog full, entry dropped")
	}
}

func (q *transcriptQueue) run() {
	defer close(q.done)
	for entry := range q.entries {
		q.publish(entry)
	}
}

func (q *transcriptQueue) publish(entry transcriptEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if entry.message != nil {
		if _, err := q.publisher.PublishMessage(ctx, entry.message); err != nil {
			metrics.TranscriptPublishFailures.WithLabelValues("message").Inc()
			q.logger.Warn("failed to publish transcript message",
				zap.String("session_id", entry.message.SessionID),
				zap.String("message_id", entry.message.ID),
				zap.Error(err),
			)
		}
		return
	}

	if _, err := q.publisher.PublishEvent(ctx, entry.event); err != nil {
		metrics.TranscriptPublishFailures.WithLabelValues("event").Inc()
		q.logger.Warn("failed to publish session event",
			zap.String("session_id", entry.event.SessionID),
			zap.String("type", string(entry.event.Type)),
			zap.Error(err),
		)
	}
}

// stop rejects new entries and waits until the backlog is published or
// ctx ends.
func (q *transcriptQueue) stop(ctx context.Context) {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.entries)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
	case <-ctx.Done():
	}
}
