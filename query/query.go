// Package query holds the result and statement types shared by the engine,
// the statement session and the window handoff.
package query

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// NullText is the textual form of a SQL NULL.
const NullText = "NULL"

// Column describes one result column. Ordinal defines display order.
type Column struct {
	Ordinal int    `json:"ordinal"`
	Name    string `json:"name"`
}

// Row maps column name to its textual value.
type Row map[string]string

// Result is an ordered sequence of rows.
type Result []Row

// SortColumns returns a copy of cols ordered by ordinal. Ties keep their
// incoming order.
func SortColumns(cols []Column) []Column {
	out := slices.Clone(cols)
	slices.SortStableFunc(out, func(a, b Column) int {
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})
	return out
}

// Names returns the column names in the given order.
func Names(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Clone returns a deep copy of the result.
func (r Result) Clone() Result {
	if r == nil {
		return nil
	}
	out := make(Result, len(r))
	for i, row := range r {
		out[i] = maps.Clone(row)
	}
	return out
}

// StatementSet is the outcome of decomposing a compound query: zero or more
// WITH prefix fragments and one or more SELECT fragments.
type StatementSet struct {
	With    []string `json:"withStatements"`
	Selects []string `json:"selectStatements"`
}

// Statement returns the runnable text of select i: every WITH fragment
// followed by the select, joined by single spaces.
func (s StatementSet) Statement(i int) (string, error) {
	if i < 0 || i >= len(s.Selects) {
		return "", fmt.Errorf("statement %d does not exist (have %d)", i, len(s.Selects))
	}
	parts := make([]string, 0, len(s.With)+1)
	parts = append(parts, s.With...)
	parts = append(parts, s.Selects[i])
	return strings.Join(parts, " "), nil
}

// Clone returns a deep copy of the set.
func (s StatementSet) Clone() StatementSet {
	return StatementSet{
		With:    slices.Clone(s.With),
		Selects: slices.Clone(s.Selects),
	}
}

// Equal reports whether both sets hold the same fragments in the same order.
func (s StatementSet) Equal(o StatementSet) bool {
	return slices.Equal(s.With, o.With) && slices.Equal(s.Selects, o.Selects)
}
