package query

// QueryError reports a query the engine rejected. The bound SQL that was
// sent is kept for display.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return "query: " + e.Err.Error()
}

func (e *QueryError) Unwrap() error { return e.Err }

// DecompositionError reports a template that could not be split into
// WITH and SELECT fragments.
type DecompositionError struct {
	SQL string
	Err error
}

func (e *DecompositionError) Error() string {
	return "decompose: " + e.Err.Error()
}

func (e *DecompositionError) Unwrap() error { return e.Err }
