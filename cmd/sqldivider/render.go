package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/bawdo/sqldivider/query"
	"github.com/bawdo/sqldivider/settings"
)

func tableStyle(mode settings.DisplayMode) table.Style {
	if mode == settings.Dark {
		return table.StyleColoredDark
	}
	return table.StyleLight
}

// renderResult writes cols and rows as a table followed by the row count.
func renderResult(w io.Writer, cols []query.Column, rows query.Result, mode settings.DisplayMode) {
	if len(cols) == 0 {
		_, _ = fmt.Fprintln(w, "  (no result)")
		return
	}
	names := query.Names(query.SortColumns(cols))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(tableStyle(mode))

	header := make(table.Row, len(names))
	for i, n := range names {
		header[i] = n
	}
	t.AppendHeader(header)

	for _, r := range rows {
		row := make(table.Row, len(names))
		for i, n := range names {
			row[i] = r[n]
		}
		t.AppendRow(row)
	}
	t.Render()

	if len(rows) == 1 {
		_, _ = fmt.Fprintln(w, "(1 row)")
	} else {
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	}
}

// renderStatements lists the WITH prefix and the numbered selects.
func renderStatements(w io.Writer, set query.StatementSet, bind func(string) string) {
	if len(set.Selects) == 0 {
		_, _ = fmt.Fprintln(w, "  (no statements, use 'split' first)")
		return
	}
	for _, with := range set.With {
		_, _ = fmt.Fprintf(w, "  WITH  %s\n", with)
	}
	for i, sel := range set.Selects {
		_, _ = fmt.Fprintf(w, "  [%d]  %s\n", i, bind(sel))
	}
}
