// Package sqldivider binds parameters into SQL templates, splits queries into
// the SELECT statements they are made of, and hands workbench state to new
// windows.
//
// This package re-exports commonly used types and functions from subpackages
// for convenience. Advanced users can import subpackages directly:
//   - github.com/bawdo/sqldivider/binding (placeholder substitution)
//   - github.com/bawdo/sqldivider/decompose (WITH/SELECT splitting)
//   - github.com/bawdo/sqldivider/connection (connection lifecycle)
//   - github.com/bawdo/sqldivider/session (statement sessions)
//   - github.com/bawdo/sqldivider/handoff (window snapshot delivery)
package sqldivider

import (
	"github.com/bawdo/sqldivider/binding"
	"github.com/bawdo/sqldivider/connection"
	"github.com/bawdo/sqldivider/decompose"
	"github.com/bawdo/sqldivider/handoff"
	"github.com/bawdo/sqldivider/query"
	"github.com/bawdo/sqldivider/session"
)

// --- Binding ---

// Pattern is a placeholder dialect.
type Pattern = binding.Pattern

// Parameter is a named value substituted into a template.
type Parameter = binding.Parameter

// Placeholder patterns.
const (
	MyBatis = binding.MyBatis
	JPA     = binding.JPA
	Dapper  = binding.Dapper
	Log     = binding.Log
)

// Bind replaces the placeholders of p in template with params, in order.
func Bind(template string, p Pattern, params ...Parameter) string {
	return binding.Bind(template, p, params)
}

// ParsePattern resolves a pattern by name.
func ParsePattern(name string) (Pattern, error) {
	return binding.ParsePattern(name)
}

// --- Statements ---

// StatementSet is a decomposed query.
type StatementSet = query.StatementSet

// Split decomposes sql into its WITH prefix and SELECT statements.
func Split(sql string) (StatementSet, error) {
	return decompose.Split(sql)
}

// --- Sessions ---

// Session is the state of one statement window.
type Session = session.Session

// Snapshot is the state handed to a new window.
type Snapshot = handoff.Snapshot

// NewSession creates a session that runs queries through m.
func NewSession(m *connection.Manager, opts ...session.Option) *Session {
	return session.New(m, decompose.Parser{}, opts...)
}

// NewManager creates a connection manager over driver.
func NewManager(driver connection.Driver, opts ...connection.Option) *connection.Manager {
	return connection.NewManager(driver, opts...)
}

// --- Errors ---

var (
	// ErrNotConnected is returned when a query is issued without a connection.
	ErrNotConnected = connection.ErrNotConnected
	// ErrBusy is returned when a session is already executing.
	ErrBusy = session.ErrBusy
	// ErrNotAcknowledged is returned when a window never confirmed its snapshot.
	ErrNotAcknowledged = handoff.ErrNotAcknowledged
)
