package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowsEmpty(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	assert.Contains(t, b.run(t, "windows"), "(no windows)")
	assert.Error(t, b.Execute("window 1"))
	assert.Error(t, b.Execute("close 1"))
	assert.Error(t, b.Execute("window"))
}

func TestOpenWindowReceivesSnapshot(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	b.connect(t)
	b.run(t,
		"pattern jpa",
		"param add age 18",
		"sql select name from people where age >= :age",
		"split",
	)

	out := b.run(t, "open 0")
	assert.Contains(t, out, "ann")
	assert.Contains(t, out, "Opened window 1")

	// Later edits in the main window are not seen by the window.
	b.run(t, "param set 0 age 99", "pattern dapper")

	out = b.run(t, "window 1")
	assert.Contains(t, out, "pattern jpa")
	assert.Contains(t, out, "[0]  select name from people where age >= 18")
	assert.Contains(t, out, "ann")
	assert.Contains(t, out, "(1 row)")

	out = b.run(t, "statements")
	assert.Contains(t, out, "age >= :age", "dapper leaves jpa tokens unbound")
}

func TestWindowRunsItsOwnStatements(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	b.connect(t)
	b.run(t,
		"param add min 18",
		"sql with adults as (select * from people where age >= #{min}) select name from adults",
		"split",
		"open",
	)

	// A new template in the main window leaves the window's statements alone.
	b.run(t, "sql select 1", "split")

	out := b.run(t, "window 1 run 0")
	assert.Contains(t, out, "ann")
	assert.NotContains(t, out, "bob")

	assert.Error(t, b.Execute("window 1 run 3"))
	assert.Error(t, b.Execute("window 1 jump 0"))
}

func TestOpenSeveralWindows(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	b.run(t, "sql select 1 as one", "split", "open")
	b.run(t, "sql select 2 as two", "split", "open")

	one := b.run(t, "window 1")
	two := b.run(t, "window 2")
	assert.Contains(t, one, "select 1 as one")
	assert.NotContains(t, one, "select 2 as two")
	assert.Contains(t, two, "select 2 as two")

	out := b.run(t, "windows")
	assert.Contains(t, out, "1  ")
	assert.Contains(t, out, "2  ")
	assert.Contains(t, out, "open")
	assert.Len(t, b.host.Windows(), 2)
}

func TestOpenWithoutStatements(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	b.run(t, "open")
	out := b.run(t, "window 1")
	assert.Contains(t, out, "no statements")
	assert.Contains(t, out, "(no result)")
}

func TestCloseWindow(t *testing.T) {
	t.Parallel()
	b := newTestBench(t, nil)
	b.run(t, "open")
	b.run(t, "window 1") // wait until mounted

	out := b.run(t, "close 1")
	assert.Contains(t, out, "Closed window 1")

	require.Eventually(t, func() bool {
		refs := b.windows.list()
		return len(refs) == 1 && refs[0].status() == "closed" && len(b.host.Windows()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	err := b.Execute("window 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
	assert.Error(t, b.Execute("close 1"))
	assert.Zero(t, b.bus.Pending())
}
