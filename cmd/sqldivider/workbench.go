package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bawdo/sqldivider/binding"
	"github.com/bawdo/sqldivider/connection"
	"github.com/bawdo/sqldivider/handoff"
	"github.com/bawdo/sqldivider/session"
	"github.com/bawdo/sqldivider/settings"
)

// workbenchConfig collects what a workbench is built from.
type workbenchConfig struct {
	driver          connection.Driver
	tables          func() []string // table names for completion, may be nil
	truncated       func() bool     // reports a capped result, may be nil
	maxRows         int
	decomposer      session.Decomposer
	store           settings.Store
	pattern         binding.Pattern
	handoffTimeout  time.Duration
	handoffInterval time.Duration
	logger          *slog.Logger
	out             io.Writer
}

// workbench is the main window: it owns the statement session, the
// connection and the windows opened from it.
type workbench struct {
	ctx        context.Context
	conn       *connection.Manager
	sess       *session.Session
	decomposer session.Decomposer
	bridge     *settings.Bridge
	bus        *handoff.Bus
	host       *handoff.LocalHost
	originator *handoff.Originator
	windows    *windowRegistry
	display    settings.DisplayMode
	tables     func() []string
	truncated  func() bool
	maxRows    int
	commands   []commandEntry // command registry (sorted by prefix length desc)
	out        io.Writer      // destination for REPL output (default os.Stdout)
	logger     *slog.Logger
}

func newWorkbench(ctx context.Context, cfg workbenchConfig) *workbench {
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.out == nil {
		cfg.out = os.Stdout
	}
	if cfg.store == nil {
		cfg.store = &settings.MemoryStore{}
	}

	w := &workbench{
		ctx:        ctx,
		decomposer: cfg.decomposer,
		bridge:     settings.NewBridge(cfg.store, cfg.logger),
		bus:        handoff.NewBus(handoff.WithBusLogger(cfg.logger)),
		windows:    newWindowRegistry(),
		display:    settings.Light,
		tables:     cfg.tables,
		truncated:  cfg.truncated,
		maxRows:    cfg.maxRows,
		out:        cfg.out,
		logger:     cfg.logger,
	}
	w.conn = connection.NewManager(cfg.driver,
		connection.WithLogger(cfg.logger),
		connection.WithSaver(w.bridge),
	)
	w.sess = session.New(w.conn, cfg.decomposer,
		session.WithLogger(cfg.logger),
		session.WithPattern(cfg.pattern),
	)
	w.host = handoff.NewLocalHost(ctx, w.mountWindow, handoff.WithHostLogger(cfg.logger))
	w.originator = handoff.NewOriginator(w.bus, w.host,
		handoff.WithLogger(cfg.logger),
		handoff.WithTimeout(cfg.handoffTimeout),
		handoff.WithInterval(cfg.handoffInterval),
	)
	w.initCommands()
	return w
}

// loadSettings applies the stored connection info and display mode.
func (w *workbench) loadSettings() error {
	loaded, err := w.bridge.Load(w.ctx)
	if err != nil {
		return err
	}
	if loaded.ConnectInfo != nil {
		if err := w.conn.SetInfo(*loaded.ConnectInfo); err != nil {
			return err
		}
	}
	if loaded.DisplayMode != nil {
		w.display = *loaded.DisplayMode
	}
	return nil
}

// Execute parses and runs a single REPL command.
func (w *workbench) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	lower := strings.ToLower(line)

	for _, cmd := range w.commands {
		if strings.HasSuffix(cmd.prefix, " ") {
			if strings.HasPrefix(lower, cmd.prefix) {
				return cmd.handler(strings.TrimSpace(line[len(cmd.prefix):]))
			}
		} else if lower == cmd.prefix {
			return cmd.handler("")
		}
	}

	word := strings.Fields(line)[0]
	return fmt.Errorf("unknown command: %s (type 'help' for commands)", word)
}

// Close disconnects and shuts every window down.
func (w *workbench) Close() error {
	if w.conn.State() == connection.Connected {
		_ = w.conn.Disconnect(w.ctx)
	}
	return w.host.Close()
}

func (w *workbench) prompt() string {
	return fmt.Sprintf("sqldivider[%s]> ", w.sess.Pattern())
}

func (w *workbench) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format, args...)
}
