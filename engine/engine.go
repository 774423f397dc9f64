// Package engine is the native query engine: it opens database/sql
// connections for PostgreSQL, MySQL and SQLite and converts result sets into
// textual rows.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/bawdo/sqldivider/connection"
	"github.com/bawdo/sqldivider/query"
)

var driverName = map[string]string{
	connection.Postgres: "pgx",
	connection.MySQL:    "mysql",
	connection.SQLite:   "sqlite",
}

// DefaultMaxRows caps the rows kept from a single query.
const DefaultMaxRows = 1000

var errNotOpen = errors.New("no open connection")

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMaxRows sets the row cap. Values <= 0 keep the default.
func WithMaxRows(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRows = n
		}
	}
}

// WithOpenFunc replaces sql.Open, mainly for tests.
func WithOpenFunc(open func(driver, dsn string) (*sql.DB, error)) Option {
	return func(e *Engine) { e.open = open }
}

// Engine implements connection.Driver over database/sql.
type Engine struct {
	mu        sync.Mutex
	db        *sql.DB
	dbType    string
	tables    []string
	truncated bool
	maxRows   int
	logger    *slog.Logger
	open      func(driver, dsn string) (*sql.DB, error)
}

var _ connection.Driver = (*Engine)(nil)

// New creates an engine with no open connection.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxRows: DefaultMaxRows,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		open:    sql.Open,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Connect opens and pings a connection described by info.
func (e *Engine) Connect(ctx context.Context, info connection.Info) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db != nil {
		return errors.New("connection already open")
	}

	driver, ok := driverName[info.DBType]
	if !ok {
		return fmt.Errorf("no driver for database type %q", info.DBType)
	}
	dsn, err := DSN(info)
	if err != nil {
		return err
	}

	db, err := e.open(driver, dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if info.DBType == connection.SQLite {
		// Each pooled connection to :memory: would see its own database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping: %w", err)
	}

	e.db = db
	e.dbType = info.DBType
	e.tables = nil
	if err := e.loadTables(ctx); err != nil {
		// Best effort: table names only feed completion.
		e.logger.Debug("table introspection failed", "error", err)
	}
	return nil
}

// Close closes the open connection, if any.
func (e *Engine) Close(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	e.tables = nil
	return err
}

// Query runs sqlStr and returns its columns and textual rows. NULL values
// become query.NullText. At most MaxRows rows are kept.
func (e *Engine) Query(ctx context.Context, sqlStr string) ([]query.Column, query.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil, nil, &query.QueryError{SQL: sqlStr, Err: errNotOpen}
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, nil, &query.QueryError{SQL: sqlStr, Err: err}
	}
	defer func() { _ = rows.Close() }()

	cols, result, truncated, err := e.collect(rows)
	if err != nil {
		return nil, nil, &query.QueryError{SQL: sqlStr, Err: err}
	}
	e.truncated = truncated
	e.logger.Debug("query finished", "rows", len(result), "truncated", truncated, "elapsed", time.Since(start))
	return cols, result, nil
}

func (e *Engine) collect(rows *sql.Rows) ([]query.Column, query.Result, bool, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, nil, false, fmt.Errorf("columns: %w", err)
	}
	cols := make([]query.Column, len(names))
	for i, n := range names {
		cols[i] = query.Column{Ordinal: i, Name: n}
	}

	result := query.Result{}
	truncated := false
	for rows.Next() {
		if len(result) >= e.maxRows {
			truncated = true
			break
		}
		vals := make([]sql.NullString, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, false, fmt.Errorf("scan: %w", err)
		}
		row := make(query.Row, len(names))
		for i, v := range vals {
			if v.Valid {
				row[names[i]] = v.String
			} else {
				row[names[i]] = query.NullText
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, fmt.Errorf("rows: %w", err)
	}
	return cols, result, truncated, nil
}

// Truncated reports whether the last successful query hit the row cap.
func (e *Engine) Truncated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.truncated
}

// MaxRows returns the row cap.
func (e *Engine) MaxRows() int {
	return e.maxRows
}

// Tables returns the table names found when the connection was opened.
func (e *Engine) Tables() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.tables))
	copy(out, e.tables)
	return out
}

func (e *Engine) loadTables(ctx context.Context) error {
	var q string
	switch e.dbType {
	case connection.Postgres:
		q = "SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name"
	case connection.MySQL:
		q = "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name"
	case connection.SQLite:
		q = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	default:
		return fmt.Errorf("unsupported database type: %s", e.dbType)
	}
	rows, err := e.db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	var tables []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return err
		}
		tables = append(tables, s)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	e.tables = tables
	return nil
}
