// Package channel implements the rendezvous point between a coaching pipeline
// and whatever front-end is talking to the learner.
//
// Prompts flow pipeline → interface through an unbounded FIFO queue. Replies
// flow interface → pipeline through a single slot: a second reply is refused
// until the pipeline has consumed the first. The pipeline publishes an
// explicit awaiting-reply flag so interfaces do not have to guess from timing
// whether it is blocked on the learner or still computing.
package channel

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrClosed is returned once the interface has observed the end-of-session sentinel.
	ErrClosed = errors.New("session channel closed")
	// ErrReplyPending is returned when a previous reply has not been consumed yet.
	ErrReplyPending = errors.New("previous reply not yet consumed")
	// ErrDone is returned when the pipeline sends after signalling completion.
	ErrDone = errors.New("session already signalled done")
)

// Kind categorizes messages sent to the learner.
type Kind string

const (
	// KindText is informational; no reply is expected.
	KindText Kind = "text"
	// KindQuestion is followed by the pipeline waiting for a reply.
	KindQuestion Kind = "question"
	// KindError reports a session-level failure.
	KindError Kind = "error"
	// KindDone is the end-of-session sentinel.
	KindDone Kind = "done"
)

// Message is one unit sent from the pipeline to the learner.
type Message struct {
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	Phase     string    `json:"phase,omitempty"`
	Multiline bool      `json:"multiline,omitempty"`
	Code      string    `json:"code,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// IsSentinel reports whether m marks the end of the session.
func (m Message) IsSentinel() bool {
	return m.Kind == KindDone
}

// Direction tells observers which way a message travelled.
type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

// Observer is notified of every prompt enqueued and every reply accepted, in
// that order. It runs on the caller's goroutine, must not block and must not
// call back into the Channel.
type Observer func(dir Direction, msg Message)

// Channel is a bidirectional handoff between one pipeline and one interface.
type Channel struct {
	mu       sync.Mutex
	prompts  []Message
	reply    *string
	awaiting bool
	doneSent bool
	closed   bool

	// signal wakes interface-side waiters; replyReady wakes the pipeline.
	signal     chan struct{}
	replyReady chan struct{}

	// observeMu is taken before mu is released so observers see traffic in
	// the order it was enqueued.
	observeMu sync.Mutex
	observer  Observer
}

// Option configures a Channel.
type Option func(*Channel)

// WithObserver registers an observer for traffic in both directions.
func WithObserver(fn Observer) Option {
	return func(c *Channel) {
		c.observer = fn
	}
}

// New creates an empty channel.
func New(opts ...Option) *Channel {
	c := &Channel{
		signal:     make(chan struct{}, 1),
		replyReady: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// unlockAndObserve releases mu and reports msg to the observer. It must be
// called with mu held.
func (c *Channel) unlockAndObserve(dir Direction, msg Message) {
	if c.observer == nil {
		c.mu.Unlock()
		return
	}
	c.observeMu.Lock()
	c.mu.Unlock()
	defer c.observeMu.Unlock()
	c.observer(dir, msg)
}

// SendPrompt enqueues a pipeline-to-user message without blocking.
func (c *Channel) SendPrompt(msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	c.mu.Lock()
	if c.doneSent {
		c.mu.Unlock()
		return ErrDone
	}
	c.prompts = append(c.prompts, msg)
	c.unlockAndObserve(Outbound, msg)
	wake(c.signal)
	return nil
}

// AwaitReply blocks until the interface posts a reply or ctx is done.
func (c *Channel) AwaitReply(ctx context.Context) (string, error) {
	c.mu.Lock()
	for {
		if c.reply != nil {
			text := *c.reply
			c.reply = nil
			c.awaiting = false
			c.mu.Unlock()
			return text, nil
		}
		c.awaiting = true
		c.mu.Unlock()
		wake(c.signal)

		select {
		case <-c.replyReady:
		case <-ctx.Done():
			c.mu.Lock()
			c.awaiting = false
			c.mu.Unlock()
			return "", ctx.Err()
		}
		c.mu.Lock()
	}
}

// PostReply hands a learner reply to the pipeline.
func (c *Channel) PostReply(text string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.reply != nil {
		c.mu.Unlock()
		return ErrReplyPending
	}
	c.reply = &text
	// The pipeline is about to resume; drains must not mistake the stale flag
	// for a fresh wait.
	c.awaiting = false
	c.unlockAndObserve(Inbound, Message{Kind: KindText, Text: text, SentAt: time.Now()})
	wake(c.replyReady)
	return nil
}

// SignalDone enqueues the end-of-session sentinel. Calling it twice is a no-op.
func (c *Channel) SignalDone() {
	c.finish(Message{Kind: KindDone, SentAt: time.Now()})
}

// Fail enqueues a session-level error followed by the sentinel.
func (c *Channel) Fail(code, text string) {
	c.mu.Lock()
	if c.doneSent {
		c.mu.Unlock()
		return
	}
	errMsg := Message{Kind: KindError, Code: code, Text: text, SentAt: time.Now()}
	c.prompts = append(c.prompts, errMsg)
	c.unlockAndObserve(Outbound, errMsg)
	c.SignalDone()
}

func (c *Channel) finish(sentinel Message) {
	c.mu.Lock()
	if c.doneSent {
		c.mu.Unlock()
		return
	}
	c.doneSent = true
	c.prompts = append(c.prompts, sentinel)
	c.unlockAndObserve(Outbound, sentinel)
	wake(c.signal)
}

// Awaiting reports whether the pipeline is blocked waiting for a reply.
func (c *Channel) Awaiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting
}

// Closed reports whether the interface has observed the sentinel.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// takeAll pops every queued prompt. It marks the channel closed when the
// sentinel is among them.
func (c *Channel) takeAll() (batch []Message, sawSentinel, waiting bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch = c.prompts
	c.prompts = nil
	for _, m := range batch {
		if m.IsSentinel() {
			c.closed = true
			sawSentinel = true
		}
	}
	return batch, sawSentinel, c.awaiting && len(c.prompts) == 0
}

// DrainPrompts collects every prompt available to the interface. It returns
// when the pipeline is waiting for a reply with nothing left queued, when the
// sentinel is seen, or when idleTimeout passes without a new prompt. A
// non-positive idleTimeout disables the timing fallback.
func (c *Channel) DrainPrompts(ctx context.Context, idleTimeout time.Duration) ([]Message, error) {
	var (
		out   []Message
		timer *time.Timer
		idleC <-chan time.Time
	)
	if idleTimeout > 0 {
		timer = time.NewTimer(idleTimeout)
		defer timer.Stop()
		idleC = timer.C
	}

	for {
		if c.Closed() && len(out) == 0 {
			return nil, ErrClosed
		}
		batch, sawSentinel, waiting := c.takeAll()
		out = append(out, batch...)
		if sawSentinel {
			return out, nil
		}
		if len(batch) > 0 && timer != nil {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(idleTimeout)
		}
		if waiting {
			return out, nil
		}

		select {
		case <-c.signal:
		case <-idleC:
			return out, nil
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}

// Next blocks until one prompt is available and returns it. After the
// sentinel has been returned, Next reports ErrClosed.
func (c *Channel) Next(ctx context.Context) (Message, error) {
	for {
		c.mu.Lock()
		if len(c.prompts) > 0 {
			msg := c.prompts[0]
			c.prompts = c.prompts[1:]
			if msg.IsSentinel() {
				c.closed = true
			}
			c.mu.Unlock()
			return msg, nil
		}
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return Message{}, ErrClosed
		}

		select {
		case <-c.signal:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}
