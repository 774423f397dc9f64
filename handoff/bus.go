// Package handoff delivers a session snapshot to a newly created window.
//
// The originator emits the encoded snapshot on the "data" channel addressed
// to the window ID. The window registers a one-shot "data" listener as soon
// as it mounts and then emits "done". Window creation and listener
// registration are not synchronized, so delivery must survive a "data"
// message sent before anybody listens. Two mechanisms cover this: the Bus
// latches unheard messages by default, and the Originator re-emits after the
// window reports it is listening when a transport drops the first attempt.
package handoff

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
)

// Channel names.
const (
	ChannelData = "data"
	ChannelDone = "done"
)

// Message is one signal on the transport.
type Message struct {
	Channel string
	Target  string
	Payload []byte
}

// Handler receives a message.
type Handler func(Message)

// Outcome reports what happened to an emitted message.
type Outcome int

const (
	// Dropped means no listener was registered and the message was discarded.
	Dropped Outcome = iota
	// Delivered means at least one listener received the message.
	Delivered
	// Latched means the message is held for the next listener.
	Latched
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Latched:
		return "latched"
	default:
		return "dropped"
	}
}

// Transport is the cross-window message channel.
type Transport interface {
	// Emit sends msg to the listeners registered for its channel and target.
	Emit(ctx context.Context, msg Message) (Outcome, error)
	// ListenOnce registers h for the next message on channel addressed to
	// target. The returned func cancels a registration that has not fired.
	ListenOnce(channel, target string, h Handler) (cancel func())
}

// Withdrawer is implemented by transports that hold undelivered messages.
// Forget discards whatever is still held or registered for target.
type Withdrawer interface {
	Forget(target string)
}

type route struct {
	channel string
	target  string
}

type listener struct {
	id uint64
	h  Handler
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithoutLatch makes the bus drop messages nobody is listening for.
func WithoutLatch() BusOption {
	return func(b *Bus) { b.latch = false }
}

// WithBusLogger sets the bus logger.
func WithBusLogger(l *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = l }
}

// Bus is the in-process Transport. Handlers run on their own goroutine so a
// handler may emit or listen without deadlocking the bus.
type Bus struct {
	mu        sync.Mutex
	latch     bool
	nextID    uint64
	listeners map[route][]listener
	held      map[route]Message
	logger    *slog.Logger
}

var _ Transport = (*Bus)(nil)

// NewBus creates a bus. By default an unheard message is latched: the most
// recent one per channel and target is kept and handed to the next listener.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		latch:     true,
		listeners: make(map[route][]listener),
		held:      make(map[route]Message),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Emit implements Transport.
func (b *Bus) Emit(ctx context.Context, msg Message) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Dropped, err
	}
	msg.Payload = slices.Clone(msg.Payload)
	r := route{msg.Channel, msg.Target}

	b.mu.Lock()
	ls := b.listeners[r]
	delete(b.listeners, r)
	outcome := Dropped
	switch {
	case len(ls) > 0:
		outcome = Delivered
	case b.latch:
		b.held[r] = msg
		outcome = Latched
	}
	b.mu.Unlock()

	for _, l := range ls {
		go l.h(msg)
	}
	b.logger.Debug("emit", "channel", msg.Channel, "target", msg.Target, "outcome", outcome)
	return outcome, nil
}

// ListenOnce implements Transport. A latched message is handed over at once.
func (b *Bus) ListenOnce(channel, target string, h Handler) func() {
	r := route{channel, target}

	b.mu.Lock()
	if msg, ok := b.held[r]; ok {
		delete(b.held, r)
		b.mu.Unlock()
		go h(msg)
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.listeners[r] = append(b.listeners[r], listener{id: id, h: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.listeners[r] = slices.DeleteFunc(b.listeners[r], func(l listener) bool { return l.id == id })
		if len(b.listeners[r]) == 0 {
			delete(b.listeners, r)
		}
	}
}

// Forget discards anything latched or registered for target.
func (b *Bus) Forget(target string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for r := range b.held {
		if r.target == target {
			delete(b.held, r)
		}
	}
	for r := range b.listeners {
		if r.target == target {
			delete(b.listeners, r)
		}
	}
}

// Pending returns the number of latched messages.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.held)
}
