package handoff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// ErrNotAcknowledged is returned when a window never confirmed the handoff.
var ErrNotAcknowledged = errors.New("handoff not acknowledged")

var errDropped = errors.New("snapshot dropped before the window listened")

// Defaults for delivery retries.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 50 * time.Millisecond
)

// Host creates secondary windows.
type Host interface {
	CreateWindow(ctx context.Context, id string) error
}

// Option configures an Originator.
type Option func(*Originator)

// WithTimeout bounds how long delivery to one window is retried.
func WithTimeout(d time.Duration) Option {
	return func(o *Originator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithInterval sets the first retry interval.
func WithInterval(d time.Duration) Option {
	return func(o *Originator) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithLogger sets the originator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Originator) { o.logger = l }
}

// Originator opens windows and hands each one a snapshot.
type Originator struct {
	transport Transport
	host      Host
	timeout   time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewOriginator creates an originator over transport and host.
func NewOriginator(transport Transport, host Host, opts ...Option) *Originator {
	o := &Originator{
		transport: transport,
		host:      host,
		timeout:   DefaultTimeout,
		interval:  DefaultInterval,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Delivery tracks one background handoff.
type Delivery struct {
	WindowID string
	done     chan struct{}
	err      error
}

// Done is closed when the handoff has finished.
func (d *Delivery) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the handoff finishes or ctx ends. It returns nil once the
// window has received the snapshot and reported readiness.
func (d *Delivery) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return d.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open creates a window and starts delivering snap to it. The snapshot is
// encoded before Open returns, so later changes to the caller's state are
// never observed by the window. Open does not wait for the window.
func (o *Originator) Open(ctx context.Context, snap Snapshot) (*Delivery, error) {
	payload, err := snap.Encode()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ack := make(chan struct{})
	stop := o.transport.ListenOnce(ChannelDone, id, func(Message) { close(ack) })

	if err := o.host.CreateWindow(ctx, id); err != nil {
		stop()
		return nil, fmt.Errorf("create window: %w", err)
	}
	o.logger.Debug("window created", "window", id)

	d := &Delivery{WindowID: id, done: make(chan struct{})}
	msg := Message{Channel: ChannelData, Target: id, Payload: payload}
	go o.deliver(context.WithoutCancel(ctx), d, msg, ack, stop)
	return d, nil
}

func (o *Originator) deliver(ctx context.Context, d *Delivery, msg Message, ack <-chan struct{}, stop func()) {
	defer close(d.done)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = o.interval
	eb.MaxElapsedTime = o.timeout
	eb.Reset()

	attempt := 0
	operation := func() error {
		attempt++
		outcome, err := o.transport.Emit(ctx, msg)
		if err != nil {
			return fmt.Errorf("emit: %w", err)
		}
		o.logger.Debug("snapshot emitted", "window", d.WindowID, "attempt", attempt, "outcome", outcome)
		if outcome != Dropped {
			return nil
		}
		// Nobody was listening yet. Retry once the window says it is.
		select {
		case <-ack:
			return errDropped
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		}
	}
	notify := func(err error, next time.Duration) {
		o.logger.Debug("retrying handoff", "window", d.WindowID, "error", err, "in", next)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(eb, ctx), notify)
	if err == nil {
		select {
		case <-ack:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if err != nil {
		d.err = fmt.Errorf("%w: window %s: %w", ErrNotAcknowledged, d.WindowID, err)
		if w, ok := o.transport.(Withdrawer); ok {
			w.Forget(d.WindowID)
		}
		o.logger.Warn("handoff failed", "window", d.WindowID, "error", err)
		return
	}
	o.logger.Debug("handoff acknowledged", "window", d.WindowID, "attempts", attempt)
}
