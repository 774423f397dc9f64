// Package connection guards the lifecycle of the database connection and
// decides when queries may be issued.
package connection

import (
	"fmt"
	"strings"
)

// Supported database types.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// DBTypes lists the supported database types.
var DBTypes = []string{MySQL, Postgres, SQLite}

// Info holds connection credentials. It is persisted as-is, password
// included, after a successful connect.
type Info struct {
	DBType   string `json:"dbType"`
	URL      string `json:"url"`
	DB       string `json:"db"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// Masked returns a copy with the password hidden, for display.
func (i Info) Masked() Info {
	if i.Password != "" {
		i.Password = "****"
	}
	return i
}

func (i Info) String() string {
	m := i.Masked()
	var b strings.Builder
	b.WriteString(m.DBType)
	b.WriteString(" ")
	if m.User != "" {
		b.WriteString(m.User)
		if m.Password != "" {
			b.WriteString(":" + m.Password)
		}
		b.WriteString("@")
	}
	b.WriteString(m.URL)
	if m.DB != "" {
		b.WriteString("/" + m.DB)
	}
	return b.String()
}

// SetField updates a single field by name (dbtype, url, db, user, password).
func (i *Info) SetField(name, value string) error {
	switch strings.ToLower(name) {
	case "dbtype", "type":
		if !ValidDBType(value) {
			return fmt.Errorf("unknown database type %q (want one of %s)", value, strings.Join(DBTypes, ", "))
		}
		i.DBType = strings.ToLower(value)
	case "url", "host":
		i.URL = value
	case "db", "database":
		i.DB = value
	case "user":
		i.User = value
	case "password", "pass":
		i.Password = value
	default:
		return fmt.Errorf("unknown connection field %q", name)
	}
	return nil
}

// ValidDBType reports whether t names a supported database type.
func ValidDBType(t string) bool {
	switch strings.ToLower(t) {
	case MySQL, Postgres, SQLite:
		return true
	}
	return false
}
