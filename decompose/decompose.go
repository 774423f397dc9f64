// Package decompose splits a compound SQL template into its WITH prefix and
// the SELECT statements that can be run on their own.
//
// The splitter works on tokens and parenthesis structure only. It does not
// validate SQL: anything shaped like "select ..." inside a query body or a
// parenthesised subquery becomes a fragment, and fragment text is copied
// verbatim from the template so placeholders survive for later binding.
package decompose

import (
	"context"
	"errors"
	"fmt"

	"github.com/bawdo/sqldivider/query"
)

var (
	errEmpty    = errors.New("empty statement")
	errNoSelect = errors.New("no SELECT statement found")
)

// Split decomposes sql. Fragments are returned in source order, outer
// statements before the subqueries they contain. CTE bodies belong to the
// WITH prefix and are not listed as selects.
func Split(sql string) (query.StatementSet, error) {
	toks, err := tokenize(sql)
	if err != nil {
		return query.StatementSet{}, err
	}
	if len(toks) == 0 {
		return query.StatementSet{}, errEmpty
	}
	match, err := matchParens(toks)
	if err != nil {
		return query.StatementSet{}, err
	}

	s := &splitter{src: sql, toks: toks, match: match}
	start := 0
	for i := 0; i <= len(toks); i++ {
		if i < len(toks) && toks[i].kind == tokLParen {
			i = match[i]
			continue
		}
		if i == len(toks) || toks[i].kind == tokSemicolon {
			if i > start {
				if err := s.query(start, i); err != nil {
					return query.StatementSet{}, err
				}
			}
			start = i + 1
		}
	}
	if len(s.set.Selects) == 0 {
		return query.StatementSet{}, errNoSelect
	}
	return s.set, nil
}

type splitter struct {
	src   string
	toks  []token
	match map[int]int
	set   query.StatementSet
}

func (s *splitter) text(from, to int) string {
	return s.src[s.toks[from].start:s.toks[to-1].end]
}

// query handles toks[from:to]: an optional WITH clause followed by a body.
func (s *splitter) query(from, to int) error {
	i := from
	if s.toks[i].is("with") {
		end, err := s.withClause(i, to)
		if err != nil {
			return err
		}
		s.set.With = append(s.set.With, s.text(i, end))
		if end >= to {
			return fmt.Errorf("WITH clause at offset %d has no query body", s.toks[i].start)
		}
		i = end
	}
	s.body(i, to)
	return nil
}

// withClause returns the index just past the last CTE of the clause
// starting at toks[from].
func (s *splitter) withClause(from, to int) (int, error) {
	j := from + 1
	if j < to && s.toks[j].is("recursive") {
		j++
	}
	for {
		if j >= to {
			return 0, fmt.Errorf("incomplete WITH clause at offset %d", s.toks[from].start)
		}
		j++ // CTE name
		if j < to && s.toks[j].kind == tokLParen {
			j = s.match[j] + 1 // column list
		}
		if j >= to || !s.toks[j].is("as") {
			return 0, fmt.Errorf("expected AS in WITH clause at offset %d", s.toks[from].start)
		}
		j++
		if j < to && s.toks[j].is("not") {
			j++
		}
		if j < to && s.toks[j].is("materialized") {
			j++
		}
		if j >= to || s.toks[j].kind != tokLParen {
			return 0, fmt.Errorf("expected '(' after AS in WITH clause at offset %d", s.toks[from].start)
		}
		j = s.match[j] + 1
		if j < to && s.toks[j].kind == tokComma {
			j++
			continue
		}
		return j, nil
	}
}

// body splits toks[from:to] on top-level set operators.
func (s *splitter) body(from, to int) {
	segStart := from
	for k := from; k < to; k++ {
		t := s.toks[k]
		if t.kind == tokLParen {
			k = s.match[k]
			continue
		}
		if t.is("union") || t.is("intersect") || t.is("except") {
			s.segment(segStart, k)
			next := k + 1
			if next < to && (s.toks[next].is("all") || s.toks[next].is("distinct")) {
				next++
			}
			segStart = next
			k = next - 1
		}
	}
	s.segment(segStart, to)
}

func (s *splitter) segment(from, to int) {
	if from >= to {
		return
	}
	first := s.toks[from]
	switch {
	case first.is("select"):
		s.set.Selects = append(s.set.Selects, s.text(from, to))
		s.nested(from+1, to)
	case first.kind == tokLParen && s.startsQuery(from):
		end := s.match[from]
		_ = s.query(from+1, end)
		s.nested(end+1, to)
	default:
		s.nested(from, to)
	}
}

// nested finds parenthesised subqueries anywhere in toks[from:to].
func (s *splitter) nested(from, to int) {
	for k := from; k < to; k++ {
		if s.toks[k].kind != tokLParen {
			continue
		}
		end := s.match[k]
		if s.startsQuery(k) {
			_ = s.query(k+1, end)
		} else {
			s.nested(k+1, end)
		}
		k = end
	}
}

// startsQuery reports whether the group opened at toks[open] begins with
// SELECT or WITH.
func (s *splitter) startsQuery(open int) bool {
	end := s.match[open]
	if open+1 >= end {
		return false
	}
	inner := s.toks[open+1]
	return inner.is("select") || inner.is("with")
}

// Parser is the decomposer used by a statement session.
type Parser struct{}

// Decompose splits sql, reporting failures as *query.DecompositionError.
func (Parser) Decompose(_ context.Context, sql string) (query.StatementSet, error) {
	set, err := Split(sql)
	if err != nil {
		return query.StatementSet{}, &query.DecompositionError{SQL: sql, Err: err}
	}
	return set, nil
}
