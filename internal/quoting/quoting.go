// Package quoting quotes identifiers and string literals for the supported
// database types.
package quoting

import (
	"strings"

	"github.com/bawdo/sqldivider/connection"
)

// Ident quotes a table or column name for dbType. MySQL uses backticks,
// everything else double quotes. Embedded quote characters are doubled.
func Ident(dbType, name string) string {
	if dbType == connection.MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Literal renders s as a single-quoted string literal for dbType. MySQL also
// treats backslash as an escape character, so it is doubled there.
func Literal(dbType, s string) string {
	if dbType == connection.MySQL {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
