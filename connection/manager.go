package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bawdo/sqldivider/query"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// current state.
	ErrInvalidState = errors.New("invalid connection state")
	// ErrNotConnected is returned by Query unless the manager is Connected.
	ErrNotConnected = errors.New("not connected (use 'connect' first)")
)

// State is the connection lifecycle state. A failed connect returns to
// Disconnected and keeps the error in LastError.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ConnectionError reports a failed connect (bad credentials, unreachable host).
type ConnectionError struct {
	Info Info
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Info, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Driver is the native query engine the manager drives.
type Driver interface {
	Connect(ctx context.Context, info Info) error
	Close(ctx context.Context) error
	Query(ctx context.Context, sql string) ([]query.Column, query.Result, error)
}

// InfoSaver persists credentials after a successful connect.
type InfoSaver interface {
	SaveConnectInfo(ctx context.Context, info Info) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithSaver sets where credentials are persisted on successful connect.
func WithSaver(s InfoSaver) Option {
	return func(m *Manager) { m.saver = s }
}

// Manager is the connection state machine.
type Manager struct {
	mu      sync.Mutex
	driver  Driver
	saver   InfoSaver
	logger  *slog.Logger
	state   State
	info    Info
	lastErr error
}

// NewManager creates a Disconnected manager over driver.
func NewManager(driver Driver, opts ...Option) *Manager {
	m := &Manager{
		driver: driver,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Info returns the current credentials.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// LastError returns the error of the most recent failed connect, or nil.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// SetInfo replaces the credentials. Only allowed while Disconnected.
func (m *Manager) SetInfo(info Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Disconnected {
		return fmt.Errorf("%w: credentials are read-only while %s", ErrInvalidState, m.state)
	}
	m.info = info
	return nil
}

// Connect opens a connection with info. Only allowed while Disconnected.
// On failure the manager returns to Disconnected and nothing is persisted.
func (m *Manager) Connect(ctx context.Context, info Info) error {
	m.mu.Lock()
	if m.state != Disconnected {
		st := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot connect while %s", ErrInvalidState, st)
	}
	m.state = Connecting
	m.info = info
	m.lastErr = nil
	m.mu.Unlock()

	m.logger.Debug("connecting", "target", info.String())
	if err := m.driver.Connect(ctx, info); err != nil {
		cerr := &ConnectionError{Info: info, Err: err}
		m.mu.Lock()
		m.state = Disconnected
		m.lastErr = cerr
		m.mu.Unlock()
		m.logger.Warn("connect failed", "target", info.String(), "error", err)
		return cerr
	}

	m.mu.Lock()
	m.state = Connected
	m.mu.Unlock()
	m.logger.Info("connected", "target", info.String())

	if m.saver != nil {
		if err := m.saver.SaveConnectInfo(ctx, info); err != nil {
			m.logger.Warn("persisting connection info failed", "error", err)
		}
	}
	return nil
}

// Disconnect closes the connection. Only allowed while Connected. The
// manager ends Disconnected even if the driver fails to close.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Connected {
		st := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot disconnect while %s", ErrInvalidState, st)
	}
	m.state = Disconnected
	info := m.info
	m.mu.Unlock()

	if err := m.driver.Close(ctx); err != nil {
		m.logger.Warn("close failed", "target", info.String(), "error", err)
	}
	m.logger.Info("disconnected", "target", info.String())
	return nil
}

// Query runs sql when Connected. It never queues: callers get
// ErrNotConnected otherwise.
func (m *Manager) Query(ctx context.Context, sql string) ([]query.Column, query.Result, error) {
	if m.State() != Connected {
		return nil, nil, ErrNotConnected
	}
	return m.driver.Query(ctx, sql)
}
