package assistant

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/inkwell/storybot/internal/model"
)

const testDelay = 20 * time.Millisecond

func newTestController(t *testing.T, opts Options) *Controller {
	t.Helper()
	if opts.Delay == 0 {
		opts.Delay = testDelay
	}
	c := NewController(opts)
	t.Cleanup(c.Close)
	return c
}

func waitTurn(t *testing.T, p *Pending) model.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := p.Wait(ctx)
	require.NoError(t, err)
	return reply
}

func TestControllerSeedsGreeting(t *testing.T) {
	c := newTestController(t, Options{SessionID: "s1"})

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.SenderAssistant, msgs[0].Sender)
	assert.Equal(t, SeedGreeting, msgs[0].Text)
	assert.Equal(t, "s1", msgs[0].SessionID)
	assert.NotEmpty(t, msgs[0].ID)
	assert.False(t, c.IsBusy())
}

func TestControllerRejectsBlankInput(t *testing.T) {
	c := newTestController(t, Options{})

	for _, raw := range []string{"", "   ", "\t\n"} {
		p, err := c.Submit(raw)
		assert.ErrorIs(t, err, ErrBlankInput)
		assert.Nil(t, p)
	}
	assert.Equal(t, 1, c.Len())
	assert.False(t, c.IsBusy())
}

func TestControllerSubmitTurn(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewController(Options{Delay: testDelay})
	defer c.Close()

	assert.False(t, c.IsBusy())
	p, err := c.Submit("hi")
	require.NoError(t, err)
	assert.True(t, c.IsBusy())
	assert.Equal(t, 2, c.Len())

	reply := waitTurn(t, p)
	assert.False(t, c.IsBusy())

	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, model.SenderUser, msgs[1].Sender)
	assert.Equal(t, "hi", msgs[1].Text)
	assert.Equal(t, model.SenderAssistant, msgs[2].Sender)
	assert.Equal(t, GreetingResponse, msgs[2].Text)
	assert.Equal(t, string(IntentGreeting), msgs[2].Intent)
	assert.Equal(t, reply, msgs[2])
	assert.False(t, msgs[2].Timestamp.Before(msgs[1].Timestamp.Add(testDelay)))
}

func TestControllerDefaultDelay(t *testing.T) {
	c := NewController(Options{})
	defer c.Close()

	assert.Equal(t, 1500*time.Millisecond, ThinkingDelay)
	assert.Equal(t, ThinkingDelay, c.delay)
}

func TestControllerDelayIgnoresSlowObserver(t *testing.T) {
	const (
		delay = 30 * time.Millisecond
		stall = 300 * time.Millisecond
	)

	var (
		mu     sync.Mutex
		events []Event
	)
	c := newTestController(t, Options{Delay: delay, Observer: func(ev Event) {
		if ev.Type == model.EventTypeMessage && ev.Message.Sender == model.SenderUser {
			time.Sleep(stall)
		}
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}})

	p, err := c.Submit("comment")
	require.NoError(t, err)

	reply := waitTurn(t, p)
	elapsed := reply.Timestamp.Sub(p.User.Timestamp)
	assert.GreaterOrEqual(t, elapsed, delay)
	assert.Less(t, elapsed, stall)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 4)
	assert.Equal(t, model.SenderUser, events[0].Message.Sender)
	assert.Equal(t, model.EventTypeTyping, events[1].Type)
	assert.Equal(t, CommentResponse, events[2].Message.Text)
	assert.False(t, events[3].Busy)
}

func TestControllerKeepsUntrimmedText(t *testing.T) {
	c := newTestController(t, Options{})

	p, err := c.Submit("  help  ")
	require.NoError(t, err)
	assert.Equal(t, "  help  ", p.User.Text)

	reply := waitTurn(t, p)
	assert.Equal(t, HelpResponse, reply.Text)
}

func TestControllerSequentialTurns(t *testing.T) {
	c := newTestController(t, Options{})

	p, err := c.Submit("hello")
	require.NoError(t, err)
	waitTurn(t, p)

	p, err = c.Submit("help")
	require.NoError(t, err)
	waitTurn(t, p)

	msgs := c.Messages()
	require.Len(t, msgs, 5)

	want := []struct {
		sender model.Sender
		text   string
	}{
		{model.SenderAssistant, SeedGreeting},
		{model.SenderUser, "hello"},
		{model.SenderAssistant, GreetingResponse},
		{model.SenderUser, "help"},
		{model.SenderAssistant, HelpResponse},
	}
	seen := make(map[string]bool)
	for i, w := range want {
		assert.Equal(t, w.sender, msgs[i].Sender, "message %d", i)
		assert.Equal(t, w.text, msgs[i].Text, "message %d", i)
		assert.False(t, seen[msgs[i].ID], "duplicate id %s", msgs[i].ID)
		seen[msgs[i].ID] = true
	}
}

func TestControllerRejectsWhileBusy(t *testing.T) {
	c := newTestController(t, Options{Delay: 100 * time.Millisecond})

	p, err := c.Submit("hello")
	require.NoError(t, err)

	_, err = c.Submit("help")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 2, c.Len())

	waitTurn(t, p)
	assert.Equal(t, 3, c.Len())
}

func TestControllerCloseCancelsPendingTurn(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewController(Options{Delay: time.Hour})

	p, err := c.Submit("hello")
	require.NoError(t, err)

	c.Close()

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("pending turn not released by Close")
	}

	_, answered := p.Reply()
	assert.False(t, answered)
	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	assert.Equal(t, 2, c.Len())
	assert.False(t, c.IsBusy())

	_, err = c.Submit("again")
	assert.ErrorIs(t, err, ErrClosed)

	c.Close()
}

func TestControllerReadsThemeAtClassification(t *testing.T) {
	theme := NewThemeState(model.ThemeLight)
	c := newTestController(t, Options{Theme: theme, Delay: 50 * time.Millisecond})

	p, err := c.Submit("switch to light mode")
	require.NoError(t, err)
	theme.Toggle()

	reply := waitTurn(t, p)
	assert.Equal(t, ThemeResponse(model.ThemeDark), reply.Text)
	assert.Contains(t, reply.Text, "sun")
}

func TestControllerObserverOrder(t *testing.T) {
	var (
		mu     sync.Mutex
		events []Event
	)
	c := newTestController(t, Options{Observer: func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}})

	p, err := c.Submit("thanks")
	require.NoError(t, err)
	waitTurn(t, p)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 4
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, model.EventTypeMessage, events[0].Type)
	assert.Equal(t, model.SenderUser, events[0].Message.Sender)
	assert.Equal(t, model.EventTypeTyping, events[1].Type)
	assert.True(t, events[1].Busy)
	assert.Equal(t, model.EventTypeMessage, events[2].Type)
	assert.Equal(t, ThanksResponse, events[2].Message.Text)
	assert.Equal(t, model.EventTypeTyping, events[3].Type)
	assert.False(t, events[3].Busy)
}

func TestPendingWaitHonoursContext(t *testing.T) {
	c := newTestController(t, Options{Delay: time.Hour})

	p, err := c.Submit("hello")
	require.NoError(t, err)

	_, answered := p.Reply()
	assert.False(t, answered)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, c.IsBusy())
}

func TestControllerHistoryLimit(t *testing.T) {
	c := newTestController(t, Options{HistoryLimit: 2})

	p, err := c.Submit("hello")
	require.NoError(t, err)
	waitTurn(t, p)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, GreetingResponse, msgs[1].Text)
}
