package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bawdo/sqldivider/binding"
	"github.com/bawdo/sqldivider/connection"
	"github.com/bawdo/sqldivider/decompose"
	"github.com/bawdo/sqldivider/internal/testutil"
	"github.com/bawdo/sqldivider/query"
)

func newSession(t *testing.T, q Querier, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(testutil.NewTestLogger(t))}, opts...)
	return New(q, decompose.Parser{}, opts...)
}

func TestBindPreviewJPA(t *testing.T) {
	s := newSession(t, testutil.NewFakeQuerier(), WithPattern(binding.JPA))
	require.NoError(t, s.Parameters(func(p *binding.Store) error {
		p.Add(binding.Parameter{Name: "age", Value: "18"})
		return nil
	}))
	assert.Equal(t, "select * from t where age >= 18", s.BoundSQL("select * from t where age >= :age"))
	assert.Equal(t, "select * from t where age >= 18", s.BoundSQL("select * from t where age >= :age"))
}

func TestExecuteBindsAndSortsColumns(t *testing.T) {
	q := testutil.NewFakeQuerier(testutil.Response{
		Columns: []query.Column{{Ordinal: 1, Name: "name"}, {Ordinal: 0, Name: "id"}},
		Rows:    query.Result{{"id": "1", "name": "a"}},
	})
	s := newSession(t, q, WithPattern(binding.JPA))
	_ = s.Parameters(func(p *binding.Store) error {
		p.Add(binding.Parameter{Name: "age", Value: "18"})
		return nil
	})

	cols, rows, err := s.Execute(context.Background(), "select * from t where age >= :age")
	require.NoError(t, err)
	assert.Equal(t, []string{"select * from t where age >= 18"}, q.Seen())
	assert.Equal(t, []string{"id", "name"}, query.Names(cols))
	assert.Len(t, rows, 1)

	heldCols, heldRows := s.Result()
	assert.Equal(t, cols, heldCols)
	assert.Equal(t, rows, heldRows)
}

func TestExecuteFailureKeepsPreviousResult(t *testing.T) {
	boom := errors.New("syntax error")
	q := testutil.NewFakeQuerier(
		testutil.Response{Columns: []query.Column{{Name: "x"}}, Rows: query.Result{{"x": "1"}}},
		testutil.Response{Err: boom},
	)
	s := newSession(t, q)

	_, _, err := s.Execute(context.Background(), "select 1 as x")
	require.NoError(t, err)
	beforeCols, beforeRows := s.Result()

	_, _, err = s.Execute(context.Background(), "select oops")
	var qerr *query.QueryError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, "select oops", qerr.SQL)
	assert.ErrorIs(t, err, boom)

	afterCols, afterRows := s.Result()
	assert.Equal(t, beforeCols, afterCols)
	assert.Equal(t, beforeRows, afterRows)
}

func TestExecuteWhileDisconnected(t *testing.T) {
	m := connection.NewManager(nil)
	s := newSession(t, m)
	_, _, err := s.Execute(context.Background(), "select 1")
	assert.ErrorIs(t, err, connection.ErrNotConnected)
}

func TestExecuteRejectsConcurrentCall(t *testing.T) {
	q := testutil.NewFakeQuerier(testutil.Response{})
	q.Block = make(chan struct{})
	q.Entered = make(chan struct{})
	s := newSession(t, q)

	errc := make(chan error, 1)
	go func() {
		_, _, err := s.Execute(context.Background(), "select sleep(1)")
		errc <- err
	}()
	<-q.Entered

	_, _, err := s.Execute(context.Background(), "select 2")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = s.Decompose(context.Background(), "select 3")
	assert.ErrorIs(t, err, ErrBusy)

	close(q.Block)
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"select sleep(1)"}, q.Seen())
}

func TestDecomposeAndExecuteStatement(t *testing.T) {
	q := testutil.NewFakeQuerier(testutil.Response{})
	s := newSession(t, q)

	set, err := s.Decompose(context.Background(), "with a as (select 1) select * from a")
	require.NoError(t, err)
	assert.Equal(t, []string{"with a as (select 1)"}, set.With)
	assert.Equal(t, []string{"select * from a"}, set.Selects)

	_, _, err = s.ExecuteSelectStatement(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"with a as (select 1) select * from a"}, q.Seen())
}

func TestExecuteStatementBindsAfterJoining(t *testing.T) {
	q := testutil.NewFakeQuerier(testutil.Response{})
	s := newSession(t, q, WithPattern(binding.MyBatis))
	_ = s.Parameters(func(p *binding.Store) error {
		p.Add(binding.Parameter{Name: "min", Value: "5"})
		return nil
	})

	_, err := s.Decompose(context.Background(),
		"with big as (select * from t where n > #{min}) select * from big where n < #{min} + 10")
	require.NoError(t, err)

	bound, err := s.BoundStatement(0)
	require.NoError(t, err)
	assert.Equal(t, "with big as (select * from t where n > 5) select * from big where n < 5 + 10", bound)

	_, _, err = s.ExecuteSelectStatement(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{bound}, q.Seen())
}

func TestFailedDecomposeKeepsStatements(t *testing.T) {
	s := newSession(t, testutil.NewFakeQuerier())
	_, err := s.Decompose(context.Background(), "select a from t union select b from u")
	require.NoError(t, err)
	before := s.Statements()

	_, err = s.Decompose(context.Background(), "select * from (select 1")
	var derr *query.DecompositionError
	require.True(t, errors.As(err, &derr))

	assert.True(t, before.Equal(s.Statements()))
	assert.Equal(t, before, s.Statements())
}

type failingDecomposer struct{ err error }

func (f failingDecomposer) Decompose(context.Context, string) (query.StatementSet, error) {
	return query.StatementSet{}, f.err
}

func TestDecomposeWrapsPlainErrors(t *testing.T) {
	boom := errors.New("engine down")
	s := New(testutil.NewFakeQuerier(), failingDecomposer{boom})
	_, err := s.Decompose(context.Background(), "select 1")
	var derr *query.DecompositionError
	require.True(t, errors.As(err, &derr))
	assert.ErrorIs(t, err, boom)
}

func TestExecuteSelectStatementOutOfRange(t *testing.T) {
	q := testutil.NewFakeQuerier()
	s := newSession(t, q)
	_, _, err := s.ExecuteSelectStatement(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoStatement)
	_, _, err = s.ExecuteSelectStatement(context.Background(), -1)
	assert.ErrorIs(t, err, ErrNoStatement)
	assert.Empty(t, q.Seen())
}

func TestSetTemplateOnlyReplacesTemplate(t *testing.T) {
	s := newSession(t, testutil.NewFakeQuerier())
	_, err := s.Decompose(context.Background(), "select 1")
	require.NoError(t, err)

	s.SetTemplate("select 2")
	assert.Equal(t, "select 2", s.Template())
	assert.Equal(t, []string{"select 1"}, s.Statements().Selects)
}

func TestSnapshotIsIndependent(t *testing.T) {
	q := testutil.NewFakeQuerier(testutil.Response{
		Columns: []query.Column{{Ordinal: 0, Name: "x"}},
		Rows:    query.Result{{"x": "1"}},
	})
	s := newSession(t, q, WithPattern(binding.Dapper))
	_ = s.Parameters(func(p *binding.Store) error {
		p.Add(binding.Parameter{Name: "id", Value: "7"})
		return nil
	})
	_, err := s.Decompose(context.Background(), "with w as (select 1) select * from w")
	require.NoError(t, err)
	_, _, err = s.Execute(context.Background(), "select 1 as x")
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, binding.Dapper, snap.Pattern)
	assert.Equal(t, []string{"with w as (select 1)"}, snap.WithStatements)

	snap.Parameters[0].Value = "8"
	snap.Rows[0]["x"] = "2"
	snap.SelectStatements[0] = "changed"

	assert.Equal(t, "7", s.ParameterList()[0].Value)
	_, rows := s.Result()
	assert.Equal(t, "1", rows[0]["x"])
	assert.Equal(t, []string{"select * from w"}, s.Statements().Selects)
}

func TestFromSnapshot(t *testing.T) {
	src := newSession(t, testutil.NewFakeQuerier(), WithPattern(binding.Log))
	_ = src.Parameters(func(p *binding.Store) error {
		p.Add(binding.Parameter{Name: "id", Value: "3"})
		return nil
	})
	_, err := src.Decompose(context.Background(), "with w as (select 1) select * from w where id = $id")
	require.NoError(t, err)

	q := testutil.NewFakeQuerier(testutil.Response{})
	win := FromSnapshot(q, decompose.Parser{}, src.Snapshot())
	assert.Equal(t, binding.Log, win.Pattern())

	_, _, err = win.ExecuteSelectStatement(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"with w as (select 1) select * from w where id = 3"}, q.Seen())

	_ = win.Parameters(func(p *binding.Store) error { return p.Set(0, binding.Parameter{Name: "id", Value: "4"}) })
	assert.Equal(t, "3", src.ParameterList()[0].Value)
}
