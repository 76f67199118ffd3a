// Package service provides business logic for the StoryBot assistant.
package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkwell/storybot/internal/assistant"
	"github.com/inkwell/storybot/internal/model"
	"github.com/inkwell/storybot/pkg/logger"
	"github.com/inkwell/storybot/pkg/metrics"
)

var (
	// ErrSessionNotFound is returned for unknown sessions and for sessions
	// owned by someone else.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when MaxSessions are already mounted.
	ErrTooManySessions = errors.New("too many sessions")
)

const subscriberBuffer = 32

// TranscriptPublisher receives every appended message and session event.
type TranscriptPublisher interface {
	PublishMessage(ctx context.Context, msg *model.Message) (uint64, error)
	PublishEvent(ctx context.Context, event *model.SessionEvent) (uint64, error)
}

// NopPublisher discards transcripts.
type NopPublisher struct{}

// PublishMessage implements TranscriptPublisher.
func (NopPublisher) PublishMessage(context.Context, *model.Message) (uint64, error) { return 0, nil }

// PublishEvent implements TranscriptPublisher.
func (NopPublisher) PublishEvent(context.Context, *model.SessionEvent) (uint64, error) { return 0, nil }

// Options configures a SessionService.
type Options struct {
	ThinkingDelay time.Duration
	HistoryLimit  int
	MaxSessions   int
	IdleTimeout   time.Duration
	DefaultTheme  model.Theme
}

// session is one mounted widget: a controller, its theme and listeners.
type session struct {
	id        string
	userID    string
	createdAt time.Time

	theme      *assistant.ThemeState
	controller *assistant.Controller

	mu         sync.Mutex
	lastActive time.Time
	subs       map[int]chan model.SessionEvent
	nextSub    int
	closed     bool
}

// SessionService manages mounted chat sessions.
type SessionService struct {
	transcripts *transcriptQueue
	classifier  *assistant.Classifier
	logger      *logger.Logger
	opts        Options

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewSessionService creates a new session service.
func NewSessionService(publisher TranscriptPublisher, opts Options, log *logger.Logger) *SessionService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if log == nil {
		log = logger.Global()
	}
	if opts.DefaultTheme == "" {
		opts.DefaultTheme = model.ThemeLight
	}
	return &SessionService{
		transcripts: newTranscriptQueue(publisher, log),
		classifier:  assistant.NewClassifier(),
		logger:      log,
		opts:        opts,
		sessions:    make(map[string]*session),
	}
}

// Classify runs the classifier without touching any session.
func (s *SessionService) Classify(text string, theme model.Theme) assistant.Result {
	if theme == "" {
		theme = s.opts.DefaultTheme
	}
	return s.classifier.Classify(text, theme)
}

// Create mounts a new widget session seeded with the greeting.
func (s *SessionService) Create(ctx context.Context, userID string, theme model.Theme) (*model.Session, error) {
	if theme == "" {
		theme = s.opts.DefaultTheme
	}

	now := time.Now()
	sess := &session{
		id:         uuid.Must(uuid.NewV7()).String(),
		userID:     userID,
		createdAt:  now,
		lastActive: now,
		theme:      assistant.NewThemeState(theme),
		subs:       make(map[int]chan model.SessionEvent),
	}
	sess.controller = assistant.NewController(assistant.Options{
		SessionID:    sess.id,
		Delay:        s.opts.ThinkingDelay,
		HistoryLimit: s.opts.HistoryLimit,
		Theme:        sess.theme,
		Classifier:   s.classifier,
		Observer:     s.observer(sess),
		Logger:       s.logger,
	})

	s.mu.Lock()
	if s.opts.MaxSessions > 0 && len(s.sessions) >= s.opts.MaxSessions {
		s.mu.Unlock()
		sess.controller.Close()
		return nil, ErrTooManySessions
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	metrics.SessionsActive.Inc()
	s.publishEvent(sess, model.EventTypeMounted)

	s.logger.Info("session mounted",
		zap.String("session_id", sess.id),
		zap.String("user_id", userID),
		zap.String("theme", string(sess.theme.Theme())),
	)

	return s.snapshot(sess), nil
}

// Get returns the state of a session owned by userID.
func (s *SessionService) Get(ctx context.Context, userID, sessionID string) (*model.Session, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(sess), nil
}

// List returns the sessions owned by userID, oldest first. Anonymous
// visitors share the empty user id, so they can only reach a session by
// its id and List returns nothing for them.
func (s *SessionService) List(ctx context.Context, userID string) *model.ListSessionsResponse {
	if userID == "" {
		return &model.ListSessionsResponse{Sessions: []model.Session{}}
	}

	s.mu.RLock()
	owned := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.userID == userID {
			owned = append(owned, sess)
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		return owned[i].createdAt.Before(owned[j].createdAt)
	})

	list := make([]model.Session, len(owned))
	for i, sess := range owned {
		list[i] = *s.snapshot(sess)
	}

	return &model.ListSessionsResponse{
		Sessions: list,
		Total:    len(list),
	}
}

// Delete unmounts a session. An outstanding turn is cancelled and never
// produces its reply.
func (s *SessionService) Delete(ctx context.Context, userID, sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.userID != userID {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	s.unmount(ctx, sess)
	return nil
}

// Submit starts a turn in the session.
func (s *SessionService) Submit(ctx context.Context, userID, sessionID, text string) (*assistant.Pending, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}

	pending, err := sess.controller.Submit(text)
	if err != nil {
		return nil, err
	}
	sess.touch()

	return pending, nil
}

// Messages returns the transcript of a session.
func (s *SessionService) Messages(ctx context.Context, userID, sessionID string) (*model.ListMessagesResponse, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}

	return &model.ListMessagesResponse{
		Messages: sess.controller.Messages(),
		Busy:     sess.controller.IsBusy(),
	}, nil
}

// SetTheme changes the theme the assistant sees.
func (s *SessionService) SetTheme(ctx context.Context, userID, sessionID string, theme model.Theme) (*model.Session, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.theme.Set(theme); err != nil {
		return nil, err
	}
	sess.touch()
	s.themeChanged(sess)
	return s.snapshot(sess), nil
}

// ToggleTheme flips the session theme.
func (s *SessionService) ToggleTheme(ctx context.Context, userID, sessionID string) (*model.Session, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.theme.Toggle()
	sess.touch()
	s.themeChanged(sess)
	return s.snapshot(sess), nil
}

// Subscribe streams session events until the returned cancel function is
// called or the session is unmounted, whichever comes first.
func (s *SessionService) Subscribe(ctx context.Context, userID, sessionID string) (<-chan model.SessionEvent, func(), error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, nil, ErrSessionNotFound
	}

	id := sess.nextSub
	sess.nextSub++
	ch := make(chan model.SessionEvent, subscriberBuffer)
	sess.subs[id] = ch

	cancel := func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sub, ok := sess.subs[id]; ok {
			delete(sess.subs, id)
			close(sub)
		}
	}

	return ch, cancel, nil
}

// Sweep unmounts idle sessions that have no turn outstanding and returns
// how many were removed.
func (s *SessionService) Sweep(ctx context.Context, now time.Time) int {
	if s.opts.IdleTimeout <= 0 {
		return 0
	}

	s.mu.Lock()
	var idle []*session
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActiveAt()) >= s.opts.IdleTimeout && !sess.controller.IsBusy() {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		s.unmount(ctx, sess)
	}
	if len(idle) > 0 {
		s.logger.Info("idle sessions swept", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Count returns the number of mounted sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close unmounts every session, then waits for the transcript backlog to
// be published or ctx to end.
func (s *SessionService) Close(ctx context.Context) {
	s.mu.Lock()
	all := make([]*session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		all = append(all, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range all {
		s.unmount(ctx, sess)
	}
	s.transcripts.stop(ctx)
}

func (s *SessionService) lookup(userID, sessionID string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	// Sessions owned by someone else are indistinguishable from missing ones.
	if !ok || sess.userID != userID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionService) unmount(ctx context.Context, sess *session) {
	sess.controller.Close()

	sess.mu.Lock()
	sess.closed = true
	for id, ch := range sess.subs {
		delete(sess.subs, id)
		close(ch)
	}
	sess.mu.Unlock()

	metrics.SessionsActive.Dec()
	s.publishEvent(sess, model.EventTypeUnmounted)

	s.logger.Info("session unmounted",
		zap.String("session_id", sess.id),
		zap.String("user_id", sess.userID),
	)
}

func (s *SessionService) snapshot(sess *session) *model.Session {
	return &model.Session{
		ID:           sess.id,
		UserID:       sess.userID,
		Theme:        sess.theme.Theme(),
		Busy:         sess.controller.IsBusy(),
		MessageCount: sess.controller.Len(),
		CreatedAt:    sess.createdAt,
		LastActiveAt: sess.lastActiveAt(),
	}
}

// observer fans controller events out to subscribers and the transcript feed.
func (s *SessionService) observer(sess *session) func(assistant.Event) {
	return func(ev assistant.Event) {
		event := model.SessionEvent{
			ID:        uuid.Must(uuid.NewV7()).String(),
			SessionID: sess.id,
			UserID:    sess.userID,
			Type:      ev.Type,
			Message:   ev.Message,
			Busy:      ev.Busy,
			Theme:     sess.theme.Theme(),
			CreatedAt: time.Now(),
		}
		sess.broadcast(event)

		if ev.Type == model.EventTypeMessage && ev.Message != nil {
			s.transcripts.enqueue(transcriptEntry{message: ev.Message})
		}
	}
}

func (s *SessionService) themeChanged(sess *session) {
	event := s.publishEvent(sess, model.EventTypeTheme)
	sess.broadcast(event)
}

// publishEvent queues a lifecycle event for the transcript feed.
func (s *SessionService) publishEvent(sess *session, eventType model.EventType) model.SessionEvent {
	event := model.SessionEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SessionID: sess.id,
		UserID:    sess.userID,
		Type:      eventType,
		Busy:      sess.controller.IsBusy(),
		Theme:     sess.theme.Theme(),
		CreatedAt: time.Now(),
	}

	queued := event
	s.transcripts.enqueue(transcriptEntry{event: &queued})
	return event
}

func (sess *session) broadcast(event model.SessionEvent) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}
	for _, ch := range sess.subs {
		select {
		case ch <- event:
		default:
			metrics.EventsDropped.Inc()
		}
	}
}

func (sess *session) touch() {
	sess.mu.Lock()
	sess.lastActive = time.Now()
	sess.mu.Unlock()
}

func (sess *session) lastActiveAt() time.Time {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.lastActive
}
