package problog

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases. Typed errors below wrap them, so
// callers can test with errors.Is regardless of the context attached.
var (
	ErrNonGround            = errors.New("term is not ground")
	ErrUndefinedPredicate   = errors.New("undefined predicate")
	ErrCyclicNegation       = errors.New("unsupported negation in cycle")
	ErrInvalidDeclaration   = errors.New("invalid declaration")
	ErrArithmetic           = errors.New("arithmetic error")
	ErrInvalidProbability   = errors.New("invalid probability")
	ErrInconsistentEvidence = errors.New("inconsistent evidence")
	ErrLimitExceeded        = errors.New("grounding limit exceeded")
	ErrBodyNotBoolean       = errors.New("body does not evaluate to a truth value")
	ErrModelLimit           = errors.New("model enumeration limit exceeded")
	ErrUnsupportedWeight    = errors.New("weight not supported by semiring")
)

// GroundingError is fatal for one grounding run. Term is the offending
// goal or clause head when one is known.
type GroundingError struct {
	Term Term
	Err  error
	Msg  string
}

func (e *GroundingError) Error() string {
	msg := e.Err.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Term != nil {
		msg += fmt.Sprintf(" (%s)", e.Term)
	}
	return "grounding: " + msg
}

func (e *GroundingError) Unwrap() error { return e.Err }

func groundingErr(kind error, term Term, format string, args ...interface{}) *GroundingError {
	return &GroundingError{Term: term, Err: kind, Msg: fmt.Sprintf(format, args...)}
}

// CompilationError records a clause whose body could not be reduced to a
// truth value under some parent assignment during Bayesian-network
// compilation.
type CompilationError struct {
	Clause     int
	Assignment map[string]bool
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("bayesnet: clause %d under %v: %v", e.Clause, e.Assignment, e.Err)
}

func (e *CompilationError) Unwrap() error { return e.Err }

// BackendError wraps an internal failure of a compiled-circuit backend.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ParseError reports a syntax error with its source position.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Msg)
}
