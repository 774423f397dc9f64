package handoff

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/bawdo/sqldivider/binding"
	"github.com/bawdo/sqldivider/query"
)

// Snapshot is the session state handed to a new window.
type Snapshot struct {
	Pattern          binding.Pattern     `json:"pattern"`
	Parameters       []binding.Parameter `json:"parameters"`
	WithStatements   []string            `json:"withStatements"`
	SelectStatements []string            `json:"selectStatements"`
	Columns          []query.Column      `json:"columns"`
	Rows             query.Result        `json:"rows"`
}

// Encode serializes the snapshot. The encoded form shares no memory with s.
func (s Snapshot) Encode() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

// Decode parses an encoded snapshot.
func Decode(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// Statements returns the WITH and SELECT fragments as a statement set.
func (s Snapshot) Statements() query.StatementSet {
	return query.StatementSet{
		With:    slices.Clone(s.WithStatements),
		Selects: slices.Clone(s.SelectStatements),
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Pattern:          s.Pattern,
		Parameters:       slices.Clone(s.Parameters),
		WithStatements:   slices.Clone(s.WithStatements),
		SelectStatements: slices.Clone(s.SelectStatements),
		Columns:          slices.Clone(s.Columns),
		Rows:             s.Rows.Clone(),
	}
}
