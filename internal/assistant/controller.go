package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/inkwell/storybot/internal/model"
	"github.com/inkwell/storybot/pkg/logger"
	"github.com/inkwell/storybot/pkg/metrics"
)

// ThinkingDelay is how long the assistant appears to think before replying.
const ThinkingDelay = 1500 * time.Millisecond

var (
	// ErrBlankInput is returned when the utterance is empty after trimming.
	ErrBlankInput = errors.New("blank input")
	// ErrBusy is returned while a previous turn is still outstanding.
	ErrBusy = errors.New("assistant is busy")
	// ErrClosed is returned after the controller has been closed.
	ErrClosed = errors.New("conversation closed")
)

var tracer = otel.Tracer("github.com/inkwell/storybot/internal/assistant")

// Event is a change notification from a Controller.
type Event struct {
	Type    model.EventType
	Message *model.Message
	Busy    bool
}

// Options configures a Controller. Zero values select defaults.
// Observer is called synchronously in transcript order and must not call
// back into the Controller.
type Options struct {
	SessionID    string
	Delay        time.Duration
	HistoryLimit int
	Theme        ThemeSource
	Classifier   *Classifier
	Observer     func(Event)
	Logger       *logger.Logger
}

// Controller runs one turn at a time: append the user message, think,
// classify, append the reply.
type Controller struct {
	sessionID  string
	delay      time.Duration
	theme      ThemeSource
	classifier *Classifier
	observer   func(Event)
	logger     *logger.Logger

	mu     sync.Mutex
	store  *Store
	busy   bool
	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// emitMu keeps observer calls in transcript order. It is taken while
	// mu is held and released after the observer returns.
	emitMu sync.Mutex
}

// NewController creates a controller whose store is seeded with the
// StoryBot greeting.
func NewController(opts Options) *Controller {
	c := &Controller{
		sessionID:  opts.SessionID,
		delay:      opts.Delay,
		theme:      opts.Theme,
		classifier: opts.Classifier,
		observer:   opts.Observer,
		logger:     opts.Logger,
	}
	if c.delay <= 0 {
		c.delay = ThinkingDelay
	}
	if c.theme == nil {
		c.theme = NewThemeState(model.ThemeLight)
	}
	if c.classifier == nil {
		c.classifier = defaultClassifier
	}
	if c.logger == nil {
		c.logger = logger.Global()
	}
	c.logger = c.logger.With(zap.String("session_id", c.sessionID))

	c.store = NewStore(c.newMessage(SeedGreeting, model.SenderAssistant, ""), opts.HistoryLimit)
	return c
}

// Pending tracks the reply to one submitted utterance.
type Pending struct {
	// User is the message appended by Submit.
	User model.Message

	done     chan struct{}
	reply    model.Message
	answered bool
}

// Done is closed when the turn completes or is cancelled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Reply returns the assistant message once Done is closed. The flag is
// false when the turn was cancelled.
func (p *Pending) Reply() (model.Message, bool) {
	select {
	case <-p.done:
		return p.reply, p.answered
	default:
		return model.Message{}, false
	}
}

// Wait blocks until the reply is appended, the turn is cancelled or ctx ends.
func (p *Pending) Wait(ctx context.Context) (model.Message, error) {
	select {
	case <-p.done:
		if !p.answered {
			return model.Message{}, ErrClosed
		}
		return p.reply, nil
	case <-ctx.Done():
		return model.Message{}, ctx.Err()
	}
}

// Submit starts a turn for raw. Blank input and submissions while busy
// leave the conversation untouched.
func (c *Controller) Submit(raw string) (*Pending, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrBlankInput
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.busy {
		c.mu.Unlock()
		metrics.BusyRejectionsTotal.Inc()
		return nil, ErrBusy
	}

	userMsg := c.newMessage(raw, model.SenderUser, "")
	c.store.Append(userMsg)
	c.busy = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	pending := &Pending{User: userMsg, done: make(chan struct{})}

	// The delay runs from the append, however long observers take.
	start := time.Now()
	timer := time.NewTimer(c.delay)
	c.wg.Add(1)
	go c.respond(ctx, cancel, timer, start, raw, pending)

	c.emitMu.Lock()
	c.mu.Unlock()

	metrics.MessagesTotal.WithLabelValues(string(model.SenderUser)).Inc()
	c.emit(Event{Type: model.EventTypeMessage, Message: &userMsg, Busy: true})
	c.emit(Event{Type: model.EventTypeTyping, Busy: true})
	c.emitMu.Unlock()

	return pending, nil
}

func (c *Controller) respond(ctx context.Context, cancel context.CancelFunc, timer *time.Timer, start time.Time, raw string, p *Pending) {
	defer c.wg.Done()
	defer close(p.done)
	defer cancel()

	_, span := tracer.Start(ctx, "assistant.turn", trace.WithAttributes(
		attribute.String("session.id", c.sessionID),
		attribute.Int64("assistant.delay_ms", c.delay.Milliseconds()),
	))
	defer span.End()

	defer timer.Stop()

	select {
	case <-ctx.Done():
		c.cancelled(span)
		return
	case <-timer.C:
	}

	theme := c.theme.Theme()
	result := c.classifier.Classify(raw, theme)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.cancelled(span)
		return
	}
	reply := c.newMessage(result.Response, model.SenderAssistant, result.Intent)
	c.store.Append(reply)
	c.busy = false
	c.cancel = nil
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()

	p.reply = reply
	p.answered = true

	span.SetAttributes(
		attribute.String("assistant.intent", string(result.Intent)),
		attribute.String("assistant.theme", string(theme)),
	)
	metrics.MessagesTotal.WithLabelValues(string(model.SenderAssistant)).Inc()
	metrics.RecordTurn(string(result.Intent), time.Since(start).Seconds())

	c.logger.Debug("assistant replied",
		zap.String("intent", string(result.Intent)),
		zap.String("theme", string(theme)),
		zap.Duration("elapsed", time.Since(start)),
	)

	c.emit(Event{Type: model.EventTypeMessage, Message: &reply, Busy: false})
	c.emit(Event{Type: model.EventTypeTyping, Busy: false})
}

func (c *Controller) cancelled(span trace.Span) {
	span.SetStatus(codes.Error, "turn cancelled")
	metrics.TurnsCancelledTotal.Inc()
	c.logger.Debug("turn cancelled before reply")
}

// Messages returns the transcript in order.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.All()
}

// Len returns the transcript length.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// IsBusy reports whether a turn is awaiting its reply.
func (c *Controller) IsBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Close cancels an outstanding turn and rejects further submissions.
// The cancelled turn never appends its reply.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.busy = false
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

func (c *Controller) emit(ev Event) {
	if c.observer != nil {
		c.observer(ev)
	}
}

func (c *Controller) newMessage(text string, sender model.Sender, intent Intent) model.Message {
	return model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SessionID: c.sessionID,
		Text:      text,
		Sender:    sender,
		Timestamp: time.Now(),
		Intent:    string(intent),
	}
}
