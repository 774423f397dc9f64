package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bawdo/sqldivider/connection"
	"github.com/bawdo/sqldivider/decompose"
	"github.com/bawdo/sqldivider/engine"
	"github.com/bawdo/sqldivider/settings"
)

// seedPeople creates a sqlite database with three people and returns its path.
func seedPeople(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	_, err = db.Exec(`
		CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT NOT NULL, age INTEGER);
		INSERT INTO people (id, name, age) VALUES (1, 'ann', 30), (2, 'bob', 17), (3, 'cy', NULL);`)
	require.NoError(t, err)
	return path
}

type testBench struct {
	*workbench
	buf  *bytes.Buffer
	path string
}

func newTestBench(t *testing.T, store settings.Store, engineOpts ...engine.Option) *testBench {
	t.Helper()
	eng := engine.New(engineOpts...)
	buf := &bytes.Buffer{}
	wb := newWorkbench(context.Background(), workbenchConfig{
		driver:          eng,
		tables:          eng.Tables,
		truncated:       eng.Truncated,
		maxRows:         eng.MaxRows(),
		decomposer:      decompose.Parser{},
		store:           store,
		handoffTimeout:  5 * time.Second,
		handoffInterval: 10 * time.Millisecond,
		out:             buf,
	})
	t.Cleanup(func() { _ = wb.Close() })
	return &testBench{workbench: wb, buf: buf, path: seedPeople(t)}
}

// run executes each command, failing the test on the first error, and
// returns what they printed.
func (b *testBench) run(t *testing.T, commands ...string) string {
	t.Helper()
	b.buf.Reset()
	for _, cmd := range commands {
		require.NoError(t, b.Execute(cmd), "command %q", cmd)
	}
	return b.buf.String()
}

func (b *testBench) connect(t *testing.T) {
	t.Helper()
	b.run(t, "set dbtype sqlite", "set url "+b.path, "connect")
	require.Equal(t, connection.Connected, b.conn.State())
}

func TestExecuteUnknownCommand(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	err := b.Execute("frobnicate now")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: frobnicate")
	assert.NoError(t, b.Execute("   "))
}

func TestCommandNames(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	names := b.commandNames()
	assert.Contains(t, names, "select")
	assert.Contains(t, names, "param add")
	assert.Contains(t, names, "exit")
	assert.NotContains(t, names, "s", "hidden alias")
	assert.IsNonDecreasing(t, names)
}

func TestInfoMasksPassword(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	out := b.run(t,
		"set dbtype postgres",
		"set url db:5432",
		"set db app",
		"set user u",
		"set password secret",
		"info",
	)
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "dsn:      postgres://u:****@db:5432/app")
}

func TestSetRejectsUnknownField(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	assert.Error(t, b.Execute("set colour blue"))
	assert.Error(t, b.Execute("set dbtype oracle"))
	assert.Error(t, b.Execute("set"))
}

func TestConnectRequiresDBType(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	err := b.Execute("connect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database type")
}

func TestSetRejectedWhileConnected(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	b.connect(t)

	err := b.Execute("set url elsewhere.db")
	assert.ErrorIs(t, err, connection.ErrInvalidState)
	assert.Equal(t, b.path, b.conn.Info().URL)

	b.run(t, "disconnect")
	assert.Equal(t, connection.Disconnected, b.conn.State())
	assert.NoError(t, b.Execute("set url elsewhere.db"))
}

func TestExecBindsAndRenders(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	b.connect(t)

	out := b.run(t, "param add age 18", "sql select name from people where age >= #{age}")
	assert.Contains(t, out, "select name from people where age >= 18")

	out = b.run(t, "exec")
	assert.Contains(t, out, "ann")
	assert.NotContains(t, out, "bob")
	assert.Contains(t, out, "(1 row)")

	out = b.run(t, "result")
	assert.Contains(t, out, "ann")
}

func TestExecWithoutConnection(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	b.run(t, "sql select 1")
	err := b.Execute("exec")
	assert.True(t, errors.Is(err, connection.ErrNotConnected), "got %v", err)
}

func TestExecWithoutTemplate(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	assert.ErrorIs(t, b.Execute("exec"), errNoTemplate)
	assert.ErrorIs(t, b.Execute("split"), errNoTemplate)
	assert.ErrorIs(t, b.Execute("bound"), errNoTemplate)
}

func TestExecShowsNullsAndTruncation(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil, engine.WithMaxRows(2))
	b.connect(t)

	out := b.run(t, "sql select name, age from people order by id", "exec")
	assert.Contains(t, out, "(2 rows)")
	assert.Contains(t, out, "(truncated to the first 2 rows)")

	out = b.run(t, "sql select age from people where id = 3", "exec")
	assert.Contains(t, out, "NULL")
	assert.NotContains(t, out, "truncated")
}

func TestPatternCommand(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	assert.Equal(t, "sqldivider[mybatis]> ", b.prompt())

	out := b.run(t, "pattern jpa")
	assert.Contains(t, out, "placeholder :name")
	assert.Equal(t, "sqldivider[jpa]> ", b.prompt())

	assert.Error(t, b.Execute("pattern sprintf"))
	assert.Equal(t, "sqldivider[jpa]> ", b.prompt())

	out = b.run(t, "pattern")
	assert.Contains(t, out, "Pattern: jpa")
}

func TestLogPatternReplacesFirstOnly(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	out := b.run(t, "pattern log", "param add id 7", "sql select $id, $id")
	assert.Contains(t, out, "select 7, $id")
}

func TestParamCommands(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	b.run(t, "param add a 1", "param add b 2", "param set 0 c 3", "param rm 1")

	params := b.sess.ParameterList()
	require.Len(t, params, 1)
	assert.Equal(t, "c", params[0].Name)
	assert.Equal(t, "3", params[0].Value)

	out := b.run(t, "params")
	assert.Contains(t, out, "#{c}")

	assert.Error(t, b.Execute("param rm 5"))
	assert.Error(t, b.Execute("param set x y"))
	err := b.Execute("param")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "param add|str|set|rm")
}

func TestSplitAndSelect(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	b.connect(t)

	out := b.run(t,
		"pattern jpa",
		"param add age 18",
		"sql with adults as (select * from people where age >= :age) select name from adults",
		"split",
	)
	assert.Contains(t, out, "WITH  with adults as (select * from people where age >= :age)")
	assert.Contains(t, out, "[0]  select name from adults")

	out = b.run(t, "select 0")
	assert.Contains(t, out, "ann")
	assert.Contains(t, out, "(1 row)")

	assert.Error(t, b.Execute("select 4"))
	assert.Error(t, b.Execute("select x"))
}

func TestStatementsBeforeSplit(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	out := b.run(t, "statements")
	assert.Contains(t, out, "no statements")
}

func TestConnectPersistsSettings(t *testing.T) {
	t.Parallel()
	store := &settings.MemoryStore{}
	b := newTestBench(t, store)
	b.connect(t)
	b.run(t, "display dark")

	next := newTestBench(t, store)
	require.NoError(t, next.loadSettings())
	assert.Equal(t, b.path, next.conn.Info().URL)
	assert.Equal(t, connection.SQLite, next.conn.Info().DBType)
	assert.Equal(t, settings.Dark, next.display)
	assert.Equal(t, connection.Disconnected, next.conn.State())
}

func TestFailedConnectIsNotPersisted(t *testing.T) {
	t.Parallel()
	store := &settings.MemoryStore{}
	b := newTestBench(t, store)
	b.run(t, "set dbtype postgres", "set url 127.0.0.1:1", "set db nope")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b.ctx = ctx
	assert.Error(t, b.Execute("connect"))
	assert.Equal(t, connection.Disconnected, b.conn.State())
	assert.Empty(t, store.Keys())

	out := b.run(t, "status")
	assert.Contains(t, out, "Last error")
}

func TestDisplayCommand(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	out := b.run(t, "display")
	assert.Contains(t, out, "Display: light")
	b.run(t, "display dark")
	assert.Equal(t, settings.Dark, b.display)
	assert.Error(t, b.Execute("display neon"))
}

func TestHelpListsCommands(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	out := b.run(t, "help")
	for _, want := range []string{"connect", "param add", "split", "open [i]", "mybatis|jpa|dapper|log"} {
		assert.True(t, strings.Contains(out, want), "help missing %q", want)
	}
}

func TestTablesAndPeek(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	assert.Contains(t, b.run(t, "tables"), "no tables")
	b.connect(t)

	assert.Contains(t, b.run(t, "tables"), "people")

	out := b.run(t, "peek people")
	assert.Contains(t, out, `select * from "people"`)
	assert.Contains(t, out, "(3 rows)")
	assert.Equal(t, `select * from "people"`, b.sess.Template())

	assert.Error(t, b.Execute("peek nosuch"))
}

func TestParamStringQuotes(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	b.connect(t)
	out := b.run(t, "param str who o'neil", "sql select count(*) as n from people where name = #{who}")
	assert.Contains(t, out, "name = 'o''neil'")
	out = b.run(t, "exec")
	assert.Contains(t, out, "(1 row)")
}
