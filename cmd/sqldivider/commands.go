package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bawdo/sqldivider/binding"
	"github.com/bawdo/sqldivider/engine"
	"github.com/bawdo/sqldivider/internal/quoting"
	"github.com/bawdo/sqldivider/query"
	"github.com/bawdo/sqldivider/settings"
)

var errNoTemplate = errors.New("no SQL template (use 'sql <template>' first)")

// commandEntry maps a REPL prefix to its handler and optional tab-completer.
type commandEntry struct {
	prefix    string
	handler   func(args string) error
	completer func(args string) (completionContext, string) // nil = no arg completion
	hidden    bool                                          // excluded from commandNames()
}

// initCommands builds the command registry and sorts by prefix length descending.
func (w *workbench) initCommands() {
	w.commands = []commandEntry{
		// --- connection ---
		{prefix: "connect", handler: func(_ string) error { return w.cmdConnect() }},
		{prefix: "disconnect", handler: func(_ string) error { return w.cmdDisconnect() }},
		{prefix: "status", handler: func(_ string) error { w.cmdStatus(); return nil }},
		{prefix: "info", handler: func(_ string) error { return w.cmdInfo() }},
		{prefix: "set ", handler: w.cmdSet, completer: completeSetArgs},
		{prefix: "set", handler: func(_ string) error { return errors.New("usage: set <dbtype|url|db|user|password> <value>") }},

		// --- binding ---
		{prefix: "pattern ", handler: w.cmdPattern, completer: completePatternArgs},
		{prefix: "pattern", handler: func(_ string) error { return w.cmdPattern("") }},
		{prefix: "param add ", handler: w.cmdParamAdd},
		{prefix: "param set ", handler: w.cmdParamSet},
		{prefix: "param str ", handler: w.cmdParamString},
		{prefix: "param rm ", handler: w.cmdParamRemove},
		{prefix: "param", handler: func(_ string) error { return errors.New("usage: param add|str|set|rm ...") }},
		{prefix: "params", handler: func(_ string) error { w.cmdParams(); return nil }},

		// --- template ---
		{prefix: "sql ", handler: w.cmdSQL, completer: completeSQLArgs},
		{prefix: "sql", handler: func(_ string) error { return w.cmdShowTemplate() }},
		{prefix: "bound", handler: func(_ string) error { return w.cmdBound() }},
		{prefix: "exec", handler: func(_ string) error { return w.cmdExec() }},
		{prefix: "run", handler: func(_ string) error { return w.cmdExec() }},
		{prefix: "result", handler: func(_ string) error { w.cmdResult(); return nil }},
		{prefix: "tables", handler: func(_ string) error { w.cmdTables(); return nil }},
		{prefix: "peek ", handler: w.cmdPeek, completer: completeTableArgs},

		// --- statements ---
		{prefix: "split", handler: func(_ string) error { return w.cmdSplit() }},
		{prefix: "statements", handler: func(_ string) error { w.cmdStatements(); return nil }},
		{prefix: "select ", handler: w.cmdSelect},
		{prefix: "s ", handler: w.cmdSelect, hidden: true},

		// --- windows ---
		{prefix: "open ", handler: w.cmdOpen},
		{prefix: "open", handler: func(_ string) error { return w.cmdOpen("") }},
		{prefix: "windows", handler: func(_ string) error { w.cmdWindows(); return nil }},
		{prefix: "window ", handler: w.cmdWindow},
		{prefix: "close ", handler: w.cmdClose},

		// --- display ---
		{prefix: "display ", handler: w.cmdDisplay, completer: completeDisplayArgs},
		{prefix: "display", handler: func(_ string) error { return w.cmdDisplay("") }},
		{prefix: "help", handler: func(_ string) error { w.cmdHelp(); return nil }},
	}

	// Sort by prefix length descending so longest prefixes match first.
	sort.SliceStable(w.commands, func(i, j int) bool {
		return len(w.commands[i].prefix) > len(w.commands[j].prefix)
	})
}

// cmdTables lists the tables of the current connection.
func (w *workbench) cmdTables() {
	if w.tables == nil {
		return
	}
	names := w.tables()
	if len(names) == 0 {
		w.printf("  (no tables, connect first)\n")
		return
	}
	for _, n := range names {
		w.printf("  %s\n", n)
	}
}

// cmdPeek replaces the template with a select of every row of a table and runs it.
func (w *workbench) cmdPeek(args string) error {
	if args == "" {
		return errors.New("usage: peek <table>")
	}
	tmpl := "select * from " + quoting.Ident(w.conn.Info().DBType, args)
	w.sess.SetTemplate(tmpl)
	w.printf("  %s\n", tmpl)
	return w.cmdExec()
}

// commandNames derives the command name list from the registry for tab completion.
func (w *workbench) commandNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, cmd := range w.commands {
		if cmd.hidden {
			continue
		}
		name := strings.TrimRight(cmd.prefix, " ")
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	// exit/quit are handled by the REPL loop, not Execute().
	for _, extra := range []string{"exit", "quit"} {
		if !seen[extra] {
			names = append(names, extra)
		}
	}
	sort.Strings(names)
	return names
}

// --- connection ---

func (w *workbench) cmdConnect() error {
	info := w.conn.Info()
	if info.DBType == "" {
		return errors.New("no database type set (use 'set dbtype mysql|postgres|sqlite')")
	}
	w.printf("  Connecting to %s...\n", info)
	if err := w.conn.Connect(w.ctx, info); err != nil {
		return err
	}
	w.printf("  Connected.\n")
	return nil
}

func (w *workbench) cmdDisconnect() error {
	if err := w.conn.Disconnect(w.ctx); err != nil {
		return err
	}
	w.printf("  Disconnected.\n")
	return nil
}

func (w *workbench) cmdStatus() {
	w.printf("  State:   %s\n", w.conn.State())
	w.printf("  Target:  %s\n", w.conn.Info())
	if err := w.conn.LastError(); err != nil {
		w.printf("  Last error: %v\n", err)
	}
}

func (w *workbench) cmdInfo() error {
	info := w.conn.Info()
	masked := info.Masked()
	w.printf("  dbtype:   %s\n", masked.DBType)
	w.printf("  url:      %s\n", masked.URL)
	w.printf("  db:       %s\n", masked.DB)
	w.printf("  user:     %s\n", masked.User)
	w.printf("  password: %s\n", masked.Password)
	if info.DBType != "" {
		dsn, err := engine.DSN(info)
		if err != nil {
			return err
		}
		w.printf("  dsn:      %s\n", engine.SanitizeDSN(dsn))
	}
	return nil
}

func (w *workbench) cmdSet(args string) error {
	field, value, _ := strings.Cut(args, " ")
	if field == "" {
		return errors.New("usage: set <dbtype|url|db|user|password> <value>")
	}
	info := w.conn.Info()
	if err := info.SetField(field, strings.TrimSpace(value)); err != nil {
		return err
	}
	if err := w.conn.SetInfo(info); err != nil {
		return err
	}
	w.printf("  %s\n", info)
	return nil
}

// --- binding ---

func (w *workbench) cmdPattern(args string) error {
	if args == "" {
		w.printf("  Pattern: %s (available: %s)\n", w.sess.Pattern(), strings.Join(binding.PatternNames(), ", "))
		return nil
	}
	p, err := binding.ParsePattern(args)
	if err != nil {
		return err
	}
	w.sess.SetPattern(p)
	w.printf("  Pattern set to %s (placeholder %s)\n", p, p.Token("name"))
	return nil
}

func (w *workbench) cmdParamAdd(args string) error {
	name, value, ok := strings.Cut(args, " ")
	if !ok && name == "" {
		return errors.New("usage: param add <name> <value>")
	}
	p := binding.Parameter{Name: name, Value: strings.TrimSpace(value)}
	var idx int
	_ = w.sess.Parameters(func(s *binding.Store) error {
		idx = s.Add(p)
		return nil
	})
	w.printf("  [%d] %s = %s\n", idx, p.Name, p.Value)
	return nil
}

// cmdParamString appends a parameter whose value is quoted as a string
// literal for the current database type.
func (w *workbench) cmdParamString(args string) error {
	name, value, _ := strings.Cut(args, " ")
	return w.cmdParamAdd(name + " " + quoting.Literal(w.conn.Info().DBType, value))
}

func (w *workbench) cmdParamSet(args string) error {
	parts := strings.SplitN(args, " ", 3)
	if len(parts) < 2 {
		return errors.New("usage: param set <index> <name> [value]")
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("invalid index %q", parts[0])
	}
	p := binding.Parameter{Name: parts[1]}
	if len(parts) == 3 {
		p.Value = strings.TrimSpace(parts[2])
	}
	if err := w.sess.Parameters(func(s *binding.Store) error { return s.Set(idx, p) }); err != nil {
		return err
	}
	w.printf("  [%d] %s = %s\n", idx, p.Name, p.Value)
	return nil
}

func (w *workbench) cmdParamRemove(args string) error {
	idx, err := strconv.Atoi(args)
	if err != nil {
		return fmt.Errorf("invalid index %q", args)
	}
	if err := w.sess.Parameters(func(s *binding.Store) error { return s.Remove(idx) }); err != nil {
		return err
	}
	w.printf("  Removed parameter %d\n", idx)
	return nil
}

func (w *workbench) cmdParams() {
	params := w.sess.ParameterList()
	if len(params) == 0 {
		w.printf("  (no parameters)\n")
		return
	}
	p := w.sess.Pattern()
	for i, param := range params {
		w.printf("  [%d] %-20s %s\n", i, p.Token(param.Name), param.Value)
	}
}

// --- template ---

func (w *workbench) cmdSQL(args string) error {
	w.sess.SetTemplate(args)
	w.printf("  %s\n", w.sess.BoundSQL(args))
	return nil
}

func (w *workbench) cmdShowTemplate() error {
	tmpl := w.sess.Template()
	if tmpl == "" {
		return errNoTemplate
	}
	w.printf("  %s\n", tmpl)
	return nil
}

func (w *workbench) cmdBound() error {
	tmpl := w.sess.Template()
	if tmpl == "" {
		return errNoTemplate
	}
	w.printf("  %s\n", w.sess.BoundSQL(tmpl))
	return nil
}

func (w *workbench) cmdExec() error {
	tmpl := w.sess.Template()
	if tmpl == "" {
		return errNoTemplate
	}
	cols, rows, err := w.sess.Execute(w.ctx, tmpl)
	if err != nil {
		return err
	}
	w.renderResult(cols, rows)
	return nil
}

func (w *workbench) cmdResult() {
	cols, rows := w.sess.Result()
	w.renderResult(cols, rows)
}

// --- statements ---

func (w *workbench) cmdSplit() error {
	tmpl := w.sess.Template()
	if tmpl == "" {
		return errNoTemplate
	}
	if _, err := w.sess.Decompose(w.ctx, tmpl); err != nil {
		return err
	}
	w.cmdStatements()
	return nil
}

func (w *workbench) cmdStatements() {
	renderStatements(w.out, w.sess.Statements(), w.sess.BoundSQL)
}

func (w *workbench) cmdSelect(args string) error {
	idx, err := strconv.Atoi(args)
	if err != nil {
		return fmt.Errorf("invalid statement index %q", args)
	}
	cols, rows, err := w.sess.ExecuteSelectStatement(w.ctx, idx)
	if err != nil {
		return err
	}
	w.renderResult(cols, rows)
	return nil
}

// --- display ---

func (w *workbench) cmdDisplay(args string) error {
	if args == "" {
		w.printf("  Display: %s\n", w.display)
		return nil
	}
	mode, err := settings.ParseDisplayMode(args)
	if err != nil {
		return err
	}
	w.display = mode
	if err := w.bridge.SaveDisplayMode(w.ctx, mode); err != nil {
		w.logger.Warn("display mode not saved", "error", err)
	}
	w.printf("  Display set to %s\n", mode)
	return nil
}

func (w *workbench) renderResult(cols []query.Column, rows query.Result) {
	renderResult(w.out, cols, rows, w.display)
	if w.truncated != nil && w.truncated() {
		w.printf("  (truncated to the first %d rows)\n", w.maxRows)
	}
}

func (w *workbench) cmdHelp() {
	w.printf(`  Connection:
    set <field> <value>       Set dbtype, url, db, user or password (while disconnected)
    connect                   Connect with the current settings
    disconnect                Close the connection
    status                    Show connection state and last error
    info                      Show connection settings (password masked)

  Parameters:
    pattern [name]            Show or set the placeholder pattern (%s)
    param add <name> <value>  Append a parameter
    param str <name> <value>  Append a parameter quoted as a string literal
    param set <i> <name> [v]  Replace parameter i
    param rm <i>              Remove parameter i
    params                    List parameters

  Statements:
    sql <template>            Set the SQL template and show it bound
    sql                       Show the template
    bound                     Show the template bound
    exec, run                 Run the bound template
    result                    Show the last result
    tables                    List tables of the connected database
    peek <table>              Select every row of a table
    split                     Split the template into WITH and SELECT statements
    statements                List the split statements
    select <i>                Run statement i with the WITH prefix

  Windows:
    open [i]                  Open a statement window (running statement i first)
    windows                   List windows
    window <n> [run <i>]      Show window n or run statement i in it
    close <n>                 Close window n

  Other:
    display [light|dark]      Show or set the table style
    help                      Show this help
    exit, quit                Leave
`, strings.Join(binding.PatternNames(), "|"))
}
