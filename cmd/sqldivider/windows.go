package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/bawdo/sqldivider/handoff"
	"github.com/bawdo/sqldivider/session"
	"github.com/bawdo/sqldivider/settings"
)

var errWindowClosed = errors.New("window is closed")

// statementWindow is a secondary window. It runs on its own goroutine and
// owns a session built from the snapshot it was handed.
type statementWindow struct {
	id       string
	sess     *session.Session
	display  settings.DisplayMode
	requests chan windowRequest
	closed   chan struct{}
}

type windowRequest struct {
	fn    func(ctx context.Context, win *statementWindow, out io.Writer) error
	reply chan windowReply
}

type windowReply struct {
	out string
	err error
}

// do runs fn on the window goroutine and returns what it printed.
func (win *statementWindow) do(ctx context.Context, fn func(context.Context, *statementWindow, io.Writer) error) (string, error) {
	req := windowRequest{fn: fn, reply: make(chan windowReply, 1)}
	select {
	case win.requests <- req:
	case <-win.closed:
		return "", errWindowClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.out, r.err
	case <-win.closed:
		return "", errWindowClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (win *statementWindow) loop(ctx context.Context) error {
	defer close(win.closed)
	for {
		select {
		case req := <-win.requests:
			var buf bytes.Buffer
			err := req.fn(ctx, win, &buf)
			req.reply <- windowReply{out: buf.String(), err: err}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// windowRef is the main window's record of a window it opened. A window
// may mount before Open returns, so either side can create the ref.
type windowRef struct {
	num      int
	delivery *handoff.Delivery
	win      *statementWindow // nil until mounted
	gone     bool
	ready    chan struct{} // closed once mounted or gone
}

func (r *windowRef) status() string {
	switch {
	case r.gone:
		return "closed"
	case r.win != nil:
		return "open"
	case r.delivery == nil:
		return "opening"
	}
	select {
	case <-r.delivery.Done():
		if err := r.delivery.Wait(context.Background()); err != nil {
			return "failed: " + err.Error()
		}
	default:
	}
	return "opening"
}

// windowRegistry numbers windows in opening order.
type windowRegistry struct {
	mu   sync.Mutex
	next int
	refs []*windowRef
	byID map[string]*windowRef
}

func newWindowRegistry() *windowRegistry {
	return &windowRegistry{byID: make(map[string]*windowRef)}
}

func (r *windowRegistry) ref(id string) *windowRef {
	ref, ok := r.byID[id]
	if !ok {
		ref = &windowRef{ready: make(chan struct{})}
		r.byID[id] = ref
	}
	return ref
}

func (r *windowRegistry) add(d *handoff.Delivery) *windowRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	ref := r.ref(d.WindowID)
	ref.num, ref.delivery = r.next, d
	r.refs = append(r.refs, ref)
	return ref
}

func (r *windowRegistry) mounted(win *statementWindow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := r.ref(win.id)
	ref.win = win
	close(ref.ready)
}

func (r *windowRegistry) unmounted(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := r.ref(id)
	if ref.win == nil && !ref.gone {
		close(ref.ready)
	}
	ref.gone = true
	ref.win = nil
}

func (r *windowRegistry) get(num int) (*windowRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range r.refs {
		if ref.num == num {
			return ref, true
		}
	}
	return nil, false
}

// list returns copies of the refs in opening order.
func (r *windowRegistry) list() []windowRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]windowRef, len(r.refs))
	for i, ref := range r.refs {
		out[i] = *ref
	}
	return out
}

// window waits until ref is mounted and returns it.
func (r *windowRegistry) window(ctx context.Context, ref *windowRef) (*statementWindow, error) {
	done := ref.delivery.Done()
	for {
		select {
		case <-ref.ready:
			r.mu.Lock()
			defer r.mu.Unlock()
			if ref.gone {
				return nil, fmt.Errorf("window %d is closed", ref.num)
			}
			return ref.win, nil
		case <-done:
			if err := ref.delivery.Wait(ctx); err != nil {
				return nil, err
			}
			done = nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// mountWindow is the body of every secondary window.
func (w *workbench) mountWindow(ctx context.Context, id string) error {
	defer w.windows.unmounted(id)
	defer w.bus.Forget(id)
	snap, err := handoff.Mount(ctx, w.bus, id)
	if err != nil {
		return err
	}

	display := settings.Light
	loaded, err := w.bridge.Load(ctx)
	if err != nil {
		w.logger.Warn("window settings not loaded", "window", id, "error", err)
	} else if loaded.DisplayMode != nil {
		display = *loaded.DisplayMode
	}

	win := &statementWindow{
		id:       id,
		sess:     session.FromSnapshot(w.conn, w.decomposer, snap, session.WithLogger(w.logger.With("window", id))),
		display:  display,
		requests: make(chan windowRequest),
		closed:   make(chan struct{}),
	}
	w.windows.mounted(win)
	return win.loop(ctx)
}

// --- commands ---

func (w *workbench) cmdOpen(args string) error {
	if args != "" {
		if err := w.cmdSelect(args); err != nil {
			return err
		}
	}
	d, err := w.originator.Open(w.ctx, w.sess.Snapshot())
	if err != nil {
		return err
	}
	ref := w.windows.add(d)
	w.printf("  Opened window %d (%s)\n", ref.num, shortID(d.WindowID))
	return nil
}

func (w *workbench) cmdWindows() {
	refs := w.windows.list()
	if len(refs) == 0 {
		w.printf("  (no windows)\n")
		return
	}
	for _, ref := range refs {
		w.printf("  %d  %s  %s\n", ref.num, shortID(ref.delivery.WindowID), ref.status())
	}
}

func (w *workbench) cmdWindow(args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return errors.New("usage: window <n> [run <i>]")
	}
	win, err := w.openWindow(fields[0])
	if err != nil {
		return err
	}

	var fn func(context.Context, *statementWindow, io.Writer) error
	switch {
	case len(fields) == 1:
		fn = showWindow
	case len(fields) == 3 && strings.EqualFold(fields[1], "run"):
		idx, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("invalid statement index %q", fields[2])
		}
		fn = func(ctx context.Context, win *statementWindow, out io.Writer) error {
			cols, rows, err := win.sess.ExecuteSelectStatement(ctx, idx)
			if err != nil {
				return err
			}
			renderResult(out, cols, rows, win.display)
			return nil
		}
	default:
		return errors.New("usage: window <n> [run <i>]")
	}

	out, err := win.do(w.ctx, fn)
	_, _ = io.WriteString(w.out, out)
	return err
}

func showWindow(_ context.Context, win *statementWindow, out io.Writer) error {
	_, _ = fmt.Fprintf(out, "  Window %s  pattern %s\n", shortID(win.id), win.sess.Pattern())
	renderStatements(out, win.sess.Statements(), win.sess.BoundSQL)
	cols, rows := win.sess.Result()
	renderResult(out, cols, rows, win.display)
	return nil
}

func (w *workbench) openWindow(arg string) (*statementWindow, error) {
	num, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid window number %q", arg)
	}
	ref, ok := w.windows.get(num)
	if !ok {
		return nil, fmt.Errorf("no window %d", num)
	}
	return w.windows.window(w.ctx, ref)
}

func (w *workbench) cmdClose(args string) error {
	num, err := strconv.Atoi(args)
	if err != nil {
		return fmt.Errorf("invalid window number %q", args)
	}
	ref, ok := w.windows.get(num)
	if !ok {
		return fmt.Errorf("no window %d", num)
	}
	if !w.host.CloseWindow(ref.delivery.WindowID) {
		return fmt.Errorf("window %d is not open", num)
	}
	w.printf("  Closed window %d\n", num)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
