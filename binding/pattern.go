// Package binding substitutes named placeholders in SQL templates.
//
// Substitution is textual. Values are inserted verbatim and are not quoted or
// escaped, so the result is only as safe as the values supplied.
package binding

import (
	"fmt"
	"strings"
)

// Pattern is a placeholder dialect. Exactly one pattern governs a template.
type Pattern int

const (
	// MyBatis placeholders look like #{name}.
	MyBatis Pattern = iota
	// JPA placeholders look like :name.
	JPA
	// Dapper placeholders look like @name.
	Dapper
	// Log placeholders look like $name and only the first occurrence is replaced.
	Log
)

var patternNames = [...]string{
	MyBatis: "mybatis",
	JPA:     "jpa",
	Dapper:  "dapper",
	Log:     "log",
}

// Patterns returns every supported pattern in declaration order.
func Patterns() []Pattern {
	return []Pattern{MyBatis, JPA, Dapper, Log}
}

// PatternNames returns the names of every supported pattern.
func PatternNames() []string {
	names := make([]string, len(patternNames))
	copy(names, patternNames[:])
	return names
}

func (p Pattern) String() string {
	if p < 0 || int(p) >= len(patternNames) {
		return fmt.Sprintf("Pattern(%d)", int(p))
	}
	return patternNames[p]
}

// ParsePattern resolves a pattern by name (case-insensitive).
func ParsePattern(name string) (Pattern, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i, n := range patternNames {
		if n == lower {
			return Pattern(i), nil
		}
	}
	return 0, fmt.Errorf("unknown parameter pattern %q (want one of %s)",
		name, strings.Join(patternNames[:], ", "))
}

// Token returns the placeholder text for name in this pattern.
func (p Pattern) Token(name string) string {
	switch p {
	case MyBatis:
		return "#{" + name + "}"
	case JPA:
		return ":" + name
	case Dapper:
		return "@" + name
	case Log:
		return "$" + name
	}
	panic(fmt.Sprintf("binding: unhandled pattern %d", int(p)))
}

// Global reports whether every occurrence of a token is replaced. Log only
// replaces the first occurrence per parameter.
func (p Pattern) Global() bool {
	switch p {
	case MyBatis, JPA, Dapper:
		return true
	case Log:
		return false
	}
	panic(fmt.Sprintf("binding: unhandled pattern %d", int(p)))
}

// MarshalText implements encoding.TextMarshaler.
func (p Pattern) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(patternNames) {
		return nil, fmt.Errorf("invalid pattern %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pattern) UnmarshalText(text []byte) error {
	parsed, err := ParsePattern(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
