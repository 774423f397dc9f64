package main

import (
	"sort"
	"strings"

	"github.com/bawdo/sqldivider/binding"
	"github.com/bawdo/sqldivider/connection"
	"github.com/bawdo/sqldivider/settings"
)

// completionContext describes what kind of completion is appropriate.
type completionContext int

const (
	contextNone        completionContext = iota // nothing to offer
	contextCommand                              // start of line or partial command
	contextSetField                             // first arg of set
	contextDBType                               // after set dbtype
	contextPattern                              // after pattern
	contextTableName                            // table names for sql and peek
	contextDisplayMode                          // after display
)

var setFields = []string{"db", "dbtype", "password", "url", "user"}

// keywords after which a table name is expected.
var tableKeywords = map[string]bool{
	"from": true, "join": true, "into": true, "update": true,
}

// replCompleter implements readline's AutoCompleter interface.
type replCompleter struct {
	wb *workbench
}

// Do returns completion candidates for the current line/cursor position.
// length is the number of runes before pos that form the prefix being completed.
func (c *replCompleter) Do(line []rune, pos int) (newLine [][]rune, length int) {
	ctx, prefix := c.parseContext(string(line[:pos]))

	var candidates []string
	switch ctx {
	case contextCommand:
		candidates = filterPrefix(c.wb.commandNames(), prefix)
	case contextSetField:
		candidates = filterPrefix(setFields, prefix)
	case contextDBType:
		candidates = filterPrefix(connection.DBTypes, prefix)
	case contextPattern:
		candidates = filterPrefix(binding.PatternNames(), prefix)
	case contextTableName:
		candidates = c.completeTableNames(prefix)
	case contextDisplayMode:
		candidates = filterPrefix([]string{string(settings.Dark), string(settings.Light)}, prefix)
	}

	for _, cand := range candidates {
		newLine = append(newLine, []rune(cand[len(prefix):]+" "))
	}
	length = len([]rune(prefix))
	return
}

// parseContext examines the line up to the cursor and returns the completion
// context with the prefix being typed.
func (c *replCompleter) parseContext(line string) (completionContext, string) {
	lower := strings.ToLower(line)
	for _, cmd := range c.wb.commands {
		if !strings.HasSuffix(cmd.prefix, " ") {
			continue
		}
		if strings.HasPrefix(lower, cmd.prefix) {
			if cmd.completer == nil {
				return contextNone, ""
			}
			return cmd.completer(line[len(cmd.prefix):])
		}
	}
	return contextCommand, strings.TrimSpace(line)
}

func (c *replCompleter) completeTableNames(prefix string) []string {
	if c.wb.tables == nil {
		return nil
	}
	names := dedup(c.wb.tables())
	sort.Strings(names)
	return filterPrefix(names, prefix)
}

// completeSetArgs completes the field name, then the database type.
func completeSetArgs(args string) (completionContext, string) {
	field, value, ok := strings.Cut(args, " ")
	if !ok {
		return contextSetField, field
	}
	switch strings.ToLower(field) {
	case "dbtype", "type":
		return contextDBType, strings.TrimSpace(value)
	}
	return contextNone, ""
}

// completeTableArgs completes a single table name.
func completeTableArgs(args string) (completionContext, string) {
	return contextTableName, strings.TrimSpace(args)
}

func completePatternArgs(args string) (completionContext, string) {
	return contextPattern, strings.TrimSpace(args)
}

func completeDisplayArgs(args string) (completionContext, string) {
	return contextDisplayMode, strings.TrimSpace(args)
}

// completeSQLArgs completes table names after from, join, into and update.
func completeSQLArgs(args string) (completionContext, string) {
	last := lastToken(args)
	before := strings.Fields(args[:len(args)-len(last)])
	if len(before) == 0 {
		return contextNone, ""
	}
	if tableKeywords[strings.ToLower(before[len(before)-1])] {
		return contextTableName, last
	}
	return contextNone, ""
}

// filterPrefix returns items that start with prefix (case-insensitive).
func filterPrefix(items []string, prefix string) []string {
	if prefix == "" {
		result := make([]string, len(items))
		copy(result, items)
		return result
	}
	lowerPrefix := strings.ToLower(prefix)
	var result []string
	for _, item := range items {
		if strings.HasPrefix(strings.ToLower(item), lowerPrefix) {
			result = append(result, item)
		}
	}
	return result
}

func dedup(items []string) []string {
	seen := make(map[string]bool, len(items))
	var result []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}

// lastToken returns the text after the last space, tab or comma.
func lastToken(s string) string {
	if i := strings.LastIndexAny(s, " ,\t"); i >= 0 {
		return s[i+1:]
	}
	return s
}
