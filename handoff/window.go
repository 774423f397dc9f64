package handoff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Mount is the window side of the handoff. It registers the one-shot "data"
// listener for id, then emits "done", then waits for the snapshot. Only the
// first data message is used; later duplicates find no listener.
func Mount(ctx context.Context, t Transport, id string) (Snapshot, error) {
	got := make(chan Message, 1)
	cancel := t.ListenOnce(ChannelData, id, func(m Message) {
		select {
		case got <- m:
		default:
		}
	})
	defer cancel()

	if _, err := t.Emit(ctx, Message{Channel: ChannelDone, Target: id}); err != nil {
		return Snapshot{}, fmt.Errorf("signal ready: %w", err)
	}

	select {
	case m := <-got:
		return Decode(m.Payload)
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// MountFunc runs a window until its context is cancelled or it exits.
type MountFunc func(ctx context.Context, id string) error

// LocalHostOption configures a LocalHost.
type LocalHostOption func(*LocalHost)

// WithHostLogger sets the host logger.
func WithHostLogger(l *slog.Logger) LocalHostOption {
	return func(h *LocalHost) { h.logger = l }
}

// LocalHost runs each window as a goroutine in this process. Windows are
// independent: one window failing does not stop the others.
type LocalHost struct {
	ctx     context.Context
	mount   MountFunc
	group   errgroup.Group
	logger  *slog.Logger
	mu      sync.Mutex
	windows map[string]context.CancelFunc
	order   []string
}

var _ Host = (*LocalHost)(nil)

// NewLocalHost creates a host whose windows live until ctx ends, the window
// is closed, or Close is called.
func NewLocalHost(ctx context.Context, mount MountFunc, opts ...LocalHostOption) *LocalHost {
	h := &LocalHost{
		ctx:     ctx,
		mount:   mount,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		windows: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateWindow implements Host.
func (h *LocalHost) CreateWindow(_ context.Context, id string) error {
	h.mu.Lock()
	if _, ok := h.windows[id]; ok {
		h.mu.Unlock()
		return fmt.Errorf("window %s already exists", id)
	}
	wctx, cancel := context.WithCancel(h.ctx)
	h.windows[id] = cancel
	h.order = append(h.order, id)
	h.mu.Unlock()

	h.group.Go(func() error {
		defer h.remove(id)
		h.logger.Debug("window mounted", "window", id)
		err := h.mount(wctx, id)
		h.logger.Debug("window exited", "window", id, "error", err)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("window %s: %w", id, err)
		}
		return nil
	})
	return nil
}

func (h *LocalHost) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cancel, ok := h.windows[id]; ok {
		cancel()
		delete(h.windows, id)
	}
	h.order = slices.DeleteFunc(h.order, func(s string) bool { return s == id })
}

// CloseWindow cancels the window's context. It reports whether the window
// was open.
func (h *LocalHost) CloseWindow(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	cancel, ok := h.windows[id]
	if ok {
		cancel()
	}
	return ok
}

// Windows returns the IDs of open windows in creation order.
func (h *LocalHost) Windows() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.order)
}

// Close cancels every window and waits for them to exit. It returns the
// first window error.
func (h *LocalHost) Close() error {
	h.mu.Lock()
	for _, cancel := range h.windows {
		cancel()
	}
	h.mu.Unlock()
	return h.group.Wait()
}
