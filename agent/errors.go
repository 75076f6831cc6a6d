package agent

import "errors"

// Local sentinels let the root package translate agent-layer failures via
// errors.Is without agent importing the root package (which imports agent),
// which would be a cycle.
var (
	// ErrInvalidInput marks an empty question, empty doc_id, or a doc_id
	// the schema/embedding stores have never heard of.
	ErrInvalidInput = errors.New("agent: invalid input")

	// ErrQuotaExceeded marks an LLM call that failed because the account
	// or key is out of budget, not because of a transient fault.
	ErrQuotaExceeded = errors.New("agent: llm quota exceeded")

	// ErrFatal marks a programming error or corrupted registry state that
	// must never be silently swallowed.
	ErrFatal = errors.New("agent: fatal")
)
