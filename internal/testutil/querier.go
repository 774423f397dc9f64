package testutil

import (
	"context"
	"sync"

	"github.com/bawdo/sqldivider/query"
)

// Response is one scripted answer of a FakeQuerier.
type Response struct {
	Columns []query.Column
	Rows    query.Result
	Err     error
}

// FakeQuerier answers queries from a script and records the SQL it saw.
// When the script runs out the last response is repeated.
type FakeQuerier struct {
	mu        sync.Mutex
	responses []Response
	seen      []string
	entered   sync.Once

	// Block, when set, makes Query wait until it is closed. Entered is
	// closed when the first Query starts. Set both before the first call.
	Block   chan struct{}
	Entered chan struct{}
}

// NewFakeQuerier creates a querier that replies with responses in order.
func NewFakeQuerier(responses ...Response) *FakeQuerier {
	return &FakeQuerier{responses: responses}
}

// Query implements the session querier.
func (f *FakeQuerier) Query(ctx context.Context, sql string) ([]query.Column, query.Result, error) {
	f.mu.Lock()
	f.seen = append(f.seen, sql)
	var r Response
	if len(f.responses) > 0 {
		r = f.responses[0]
		if len(f.responses) > 1 {
			f.responses = f.responses[1:]
		}
	}
	f.mu.Unlock()

	if f.Entered != nil {
		f.entered.Do(func() { close(f.Entered) })
	}
	if block := f.Block; block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	return r.Columns, r.Rows.Clone(), r.Err
}

// Seen returns the SQL passed to Query so far.
func (f *FakeQuerier) Seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}
