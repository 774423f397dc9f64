// Package session holds the state of one workbench window: the SQL template,
// the parameters and pattern used to bind it, the decomposed statements and
// the last query result.
//
// A Session is owned by a single controller. It allows at most one external
// call (query or decomposition) at a time; a concurrent call fails with
// ErrBusy instead of racing the first one.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/bawdo/sqldivider/binding"
	"github.com/bawdo/sqldivider/connection"
	"github.com/bawdo/sqldivider/handoff"
	"github.com/bawdo/sqldivider/query"
)

var (
	// ErrBusy is returned when an external call is already outstanding.
	ErrBusy = errors.New("another query is still running")
	// ErrNoStatement is returned for a statement index that does not exist.
	ErrNoStatement = errors.New("no such statement")
)

// Querier runs bound SQL. *connection.Manager satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string) ([]query.Column, query.Result, error)
}

// Decomposer splits a template into WITH and SELECT fragments.
type Decomposer interface {
	Decompose(ctx context.Context, sql string) (query.StatementSet, error)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithPattern sets the initial placeholder pattern.
func WithPattern(p binding.Pattern) Option {
	return func(s *Session) { s.pattern = p }
}

// Session is the per-window statement state.
type Session struct {
	querier    Querier
	decomposer Decomposer
	logger     *slog.Logger

	inflight sync.Mutex

	mu         sync.Mutex
	pattern    binding.Pattern
	params     *binding.Store
	template   string
	statements query.StatementSet
	columns    []query.Column
	rows       query.Result
}

// New creates an empty session.
func New(q Querier, d Decomposer, opts ...Option) *Session {
	s := &Session{
		querier:    q,
		decomposer: d,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		pattern:    binding.MyBatis,
		params:     binding.NewStore(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromSnapshot creates a session seeded with a copy of snap. The new session
// shares nothing with whoever produced the snapshot.
func FromSnapshot(q Querier, d Decomposer, snap handoff.Snapshot, opts ...Option) *Session {
	s := New(q, d, opts...)
	snap = snap.Clone()
	s.pattern = snap.Pattern
	s.params = binding.NewStore(snap.Parameters...)
	s.statements = snap.Statements()
	s.columns = snap.Columns
	s.rows = snap.Rows
	return s
}

// Snapshot returns a deep copy of the state a new window needs.
func (s *Session) Snapshot() handoff.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return handoff.Snapshot{
		Pattern:          s.pattern,
		Parameters:       s.params.List(),
		WithStatements:   slices.Clone(s.statements.With),
		SelectStatements: slices.Clone(s.statements.Selects),
		Columns:          slices.Clone(s.columns),
		Rows:             s.rows.Clone(),
	}
}

// SetTemplate replaces the working template. Nothing else changes.
func (s *Session) SetTemplate(sql string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.template = sql
}

// Template returns the working template.
func (s *Session) Template() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.template
}

// SetPattern changes the placeholder pattern.
func (s *Session) SetPattern(p binding.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pattern = p
}

// Pattern returns the placeholder pattern.
func (s *Session) Pattern() binding.Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pattern
}

// Parameters runs fn with exclusive access to the parameter store.
func (s *Session) Parameters(fn func(*binding.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.params)
}

// ParameterList returns a copy of the parameters in order.
func (s *Session) ParameterList() []binding.Parameter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params.List()
}

// BoundSQL binds sql with the current pattern and parameters without
// touching any state.
func (s *Session) BoundSQL(sql string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return binding.Bind(sql, s.pattern, s.params.List())
}

// Statements returns a copy of the decomposed statements.
func (s *Session) Statements() query.StatementSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statements.Clone()
}

// Statement returns the runnable text of select i, WITH prefix included.
func (s *Session) Statement(i int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stmt, err := s.statements.Statement(i)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoStatement, err)
	}
	return stmt, nil
}

// BoundStatement returns statement i after binding.
func (s *Session) BoundStatement(i int) (string, error) {
	stmt, err := s.Statement(i)
	if err != nil {
		return "", err
	}
	return s.BoundSQL(stmt), nil
}

// Result returns copies of the last successful query's columns and rows.
func (s *Session) Result() ([]query.Column, query.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.columns), s.rows.Clone()
}

// Decompose splits template and, on success, replaces the held statements.
// On failure the previous statements are kept.
func (s *Session) Decompose(ctx context.Context, template string) (query.StatementSet, error) {
	if !s.inflight.TryLock() {
		return query.StatementSet{}, ErrBusy
	}
	defer s.inflight.Unlock()

	set, err := s.decomposer.Decompose(ctx, template)
	if err != nil {
		var derr *query.DecompositionError
		if !errors.As(err, &derr) {
			err = &query.DecompositionError{SQL: template, Err: err}
		}
		s.logger.Debug("decompose failed", "error", err)
		return query.StatementSet{}, err
	}

	s.mu.Lock()
	s.statements = set.Clone()
	s.mu.Unlock()
	s.logger.Debug("decomposed", "with", len(set.With), "selects", len(set.Selects))
	return set, nil
}

// Execute binds sql and runs it. On success the held columns, sorted by
// ordinal, and rows are replaced. On failure they are kept.
func (s *Session) Execute(ctx context.Context, sql string) ([]query.Column, query.Result, error) {
	if !s.inflight.TryLock() {
		return nil, nil, ErrBusy
	}
	defer s.inflight.Unlock()

	bound := s.BoundSQL(sql)
	cols, rows, err := s.querier.Query(ctx, bound)
	if err != nil {
		var qerr *query.QueryError
		if !errors.Is(err, connection.ErrNotConnected) && !errors.As(err, &qerr) {
			err = &query.QueryError{SQL: bound, Err: err}
		}
		s.logger.Debug("query failed", "error", err)
		return nil, nil, err
	}

	cols = query.SortColumns(cols)
	s.mu.Lock()
	s.columns = cols
	s.rows = rows
	s.mu.Unlock()
	return slices.Clone(cols), rows.Clone(), nil
}

// ExecuteSelectStatement runs select i prefixed by every WITH fragment.
func (s *Session) ExecuteSelectStatement(ctx context.Context, i int) ([]query.Column, query.Result, error) {
	stmt, err := s.Statement(i)
	if err != nil {
		return nil, nil, err
	}
	return s.Execute(ctx, stmt)
}
